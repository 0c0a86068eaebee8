// Package newrelic provides New Relic APM integration for monitoring.
package newrelic

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/saltmark/hunt-server/internal/config"
	"github.com/saltmark/hunt-server/internal/util"
)

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg   *config.NewRelicConfig
	app   *newrelic.Application
	mu    sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return err
	}

	// Wait for connection (up to 5 seconds)
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// Application returns the underlying New Relic application (for middleware)
func (a *Agent) Application() *newrelic.Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app
}

// IsEnabled returns true once Start has created the New Relic application.
// It does not report the connection state: the application is kept even when
// the initial wait for a connection times out.
func (a *Agent) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app != nil
}

// StartTransaction starts a new New Relic transaction
func (a *Agent) StartTransaction(name string) *newrelic.Transaction {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app == nil {
		return nil
	}
	return app.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// NoticeError records an error
func (a *Agent) NoticeError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

// NewContext adds transaction to context
func (a *Agent) NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}

// FromContext gets transaction from context
func (a *Agent) FromContext(ctx context.Context) *newrelic.Transaction {
	return newrelic.FromContext(ctx)
}

// RecordAction records a resolved game action (harvest or dig attempt)
func (a *Agent) RecordAction(roomID, sessionID, action string, valid bool) {
	status := "valid"
	if !valid {
		status = "invalid"
	}
	a.RecordCustomEvent("GameAction", map[string]interface{}{
		"roomId":    roomID,
		"sessionId": sessionID,
		"action":    action,
		"status":    status,
	})
}

// RecordChestFound records a chest-found event
func (a *Agent) RecordChestFound(roomID, winnerID string) {
	a.RecordCustomEvent("ChestFound", map[string]interface{}{
		"roomId":   roomID,
		"winnerId": winnerID,
	})
}

// RecordPayout records a settled payout event
func (a *Agent) RecordPayout(roomID, address string, amount float64) {
	a.RecordCustomEvent("Payout", map[string]interface{}{
		"roomId":  roomID,
		"address": address,
		"amount":  amount,
	})
}

// RecordPlayerJoined records a player joining a room
func (a *Agent) RecordPlayerJoined(roomID, address, ip string) {
	a.RecordCustomEvent("PlayerJoined", map[string]interface{}{
		"roomId":  roomID,
		"address": address,
		"ip":      ip,
	})
}

// RecordPlayerLeft records a player disconnecting from a room
func (a *Agent) RecordPlayerLeft(roomID, address string) {
	a.RecordCustomEvent("PlayerLeft", map[string]interface{}{
		"roomId":  roomID,
		"address": address,
	})
}

// UpdateRoomMetrics updates room-wide gauges
func (a *Agent) UpdateRoomMetrics(activeRooms, activePlayers int64) {
	a.RecordCustomMetric("Custom/Rooms/Active", float64(activeRooms))
	a.RecordCustomMetric("Custom/Rooms/Players", float64(activePlayers))
}
