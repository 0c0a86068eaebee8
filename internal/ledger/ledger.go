// Package ledger is the per-room wager book. Grounded directly on
// internal/master.go's processPayouts/processBatchPayout: lock-acquire,
// continue-past-per-recipient-failure, log and move on, clear the book once
// done. The ledger never owns funds — the broker does; the ledger's only
// guarantee is that exactly one of Payout/RefundAll runs per room that left
// Lobby, before the room is destroyed.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saltmark/hunt-server/internal/util"
)

// WagerRecord is one player's confirmed stake in a room.
type WagerRecord struct {
	PlayerID  string
	Address   string
	Amount    float64
	Timestamp time.Time
}

// Broker is the subset of broker.Client the ledger depends on, kept narrow so
// ledger tests can supply a fake without importing the real transport.
type Broker interface {
	TransferTo(ctx context.Context, address string, amount float64) error
}

// Ledger is the process-global per-room wager book.
type Ledger struct {
	broker Broker

	mu      sync.Mutex
	byRoom  map[string][]WagerRecord
	indexed map[string]map[string]struct{} // roomID -> playerID set, for idempotent Record
}

// New returns a ledger backed by the given broker client.
func New(broker Broker) *Ledger {
	return &Ledger{
		broker:  broker,
		byRoom:  make(map[string][]WagerRecord),
		indexed: make(map[string]map[string]struct{}),
	}
}

// Record appends a wager for playerID in roomID. A second call for the same
// player in the same room is a no-op, matching the spec's idempotence
// requirement (a duplicate WagerConfirmed must not double-count the pot).
func (l *Ledger) Record(roomID, playerID, address string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen, ok := l.indexed[roomID]
	if !ok {
		seen = make(map[string]struct{})
		l.indexed[roomID] = seen
	}
	if _, already := seen[playerID]; already {
		return
	}
	seen[playerID] = struct{}{}

	l.byRoom[roomID] = append(l.byRoom[roomID], WagerRecord{
		PlayerID:  playerID,
		Address:   address,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}

// AllStaked reports whether every id in playerIDs has a recorded wager.
func (l *Ledger) AllStaked(roomID string, playerIDs []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := l.indexed[roomID]
	for _, id := range playerIDs {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

// Pot returns the sum of all recorded amounts for a room.
func (l *Ledger) Pot(roomID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, rec := range l.byRoom[roomID] {
		total += rec.Amount
	}
	return total
}

// Payout pays the full pot to the winner's address and clears the room's
// book. Called from a background task, never from the room's own goroutine
// (see the concurrency note in internal/room).
func (l *Ledger) Payout(ctx context.Context, roomID, winnerAddress string) error {
	amount := l.Pot(roomID)
	l.clear(roomID)

	if amount <= 0 {
		return nil
	}
	if err := l.broker.TransferTo(ctx, winnerAddress, amount); err != nil {
		util.Errorf("payout to %s for room %s failed: %v", winnerAddress, roomID, err)
		return fmt.Errorf("payout failed: %w", err)
	}
	return nil
}

// RefundAll returns every recorded stake to its own address, continuing past
// individual failures (each is logged), then clears the room's book.
func (l *Ledger) RefundAll(ctx context.Context, roomID string) {
	l.mu.Lock()
	records := l.byRoom[roomID]
	l.mu.Unlock()
	l.clear(roomID)

	for _, rec := range records {
		if err := l.broker.TransferTo(ctx, rec.Address, rec.Amount); err != nil {
			util.Errorf("refund to %s (player %s, room %s) failed: %v", rec.Address, rec.PlayerID, roomID, err)
			continue
		}
	}
}

func (l *Ledger) clear(roomID string) {
	l.mu.Lock()
	delete(l.byRoom, roomID)
	delete(l.indexed, roomID)
	l.mu.Unlock()
}
