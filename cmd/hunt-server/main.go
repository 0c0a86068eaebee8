// Hunt Server - treasure-hunt room server settled over an off-chain payment channel
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/saltmark/hunt-server/internal/broker"
	"github.com/saltmark/hunt-server/internal/config"
	"github.com/saltmark/hunt-server/internal/gateway"
	"github.com/saltmark/hunt-server/internal/matchmaker"
	"github.com/saltmark/hunt-server/internal/newrelic"
	"github.com/saltmark/hunt-server/internal/notify"
	"github.com/saltmark/hunt-server/internal/policy"
	"github.com/saltmark/hunt-server/internal/profiling"
	"github.com/saltmark/hunt-server/internal/room"
	"github.com/saltmark/hunt-server/internal/session"
	"github.com/saltmark/hunt-server/internal/storage"
	"github.com/saltmark/hunt-server/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Hunt Server v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	util.Infof("Hunt Server v%s starting", version)

	privateKey, err := crypto.HexToECDSA(trimHexPrefix(cfg.Game.PrivateKey))
	if err != nil {
		util.Fatalf("Invalid PRIVATE_KEY: %v", err)
	}
	serverAddress := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	redis, err := storage.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		util.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	var pprofServer *profiling.Server
	var nrAgent *newrelic.Agent

	policyConfig := policy.DefaultConfig()
	if cfg.Policy.ConnectionLimit > 0 {
		policyConfig.ConnectionLimit = cfg.Policy.ConnectionLimit
	}
	if cfg.Policy.BanTimeout > 0 {
		policyConfig.BanTimeout = cfg.Policy.BanTimeout
	}
	policyConfig.BanningEnabled = cfg.Policy.BanningEnabled
	policyConfig.RateLimitEnabled = cfg.Policy.RateLimitEnabled
	policyServer := policy.NewPolicyServer(policyConfig, redis)
	policyServer.Start()

	if cfg.Profiling.Enabled {
		pprofServer = profiling.NewServer(&cfg.Profiling)
		if err := pprofServer.Start(); err != nil {
			util.Errorf("Failed to start pprof server: %v", err)
		}
	}

	if cfg.NewRelic.Enabled {
		nrAgent = newrelic.NewAgent(&cfg.NewRelic)
		if err := nrAgent.Start(); err != nil {
			util.Errorf("Failed to start New Relic agent: %v", err)
		}
	}

	notifier := notify.NewNotifier(&notify.WebhookConfig{
		Enabled:      cfg.Notify.Enabled,
		DiscordURL:   cfg.Notify.DiscordURL,
		TelegramBot:  cfg.Notify.TelegramBot,
		TelegramChat: cfg.Notify.TelegramChat,
		GameName:     "Hunt Server",
	})

	brokerClient := broker.New(broker.Config{
		WSURL:       cfg.Broker.WSURL,
		PrivateKey:  privateKey,
		Custody:     cfg.Broker.Custody,
		Adjudicator: cfg.Broker.Adjudicator,
		Asset:       cfg.Broker.Asset,
	})
	brokerClient.Start()
	defer brokerClient.Stop()

	roomCfg := room.Config{
		MinPlayers:          cfg.Game.MinPlayers,
		MaxPlayers:          cfg.Game.MaxPlayers,
		CountdownMs:         cfg.Game.CountdownMs,
		HarvestDurationMs:   cfg.Game.HarvestDurationMs,
		DigDurationMs:       cfg.Game.DigDurationMs,
		ChestFindRadius:     cfg.Game.ChestFindRadius,
		HarvestProximity:    cfg.Game.HarvestProximity,
		MaxSpeed:            cfg.Game.MaxSpeed,
		SpeedTolerance:      cfg.Game.SpeedTolerance,
		SyncBroadcastMs:     cfg.Game.SyncBroadcastMs,
		PositionMinInterval: cfg.Game.PositionMinInterval,
		GameTimeoutMs:       cfg.Game.GameTimeoutMs,
		EndedGraceMs:        cfg.Game.EndedGraceMs,
		WagerAmount:         cfg.Game.WagerAmount,
		ServerAddress:       serverAddress,
		Asset:               cfg.Broker.Asset,
		Rules:               session.Rules{BerryBonus: cfg.Game.BerryBonus, DigMultiplier: cfg.Game.DigMultiplier},
	}

	mm := matchmaker.New(roomCfg, brokerClient, notifier, policyServer)

	gw := gateway.New(fmt.Sprintf(":%d", cfg.Game.Port), policyServer, mm)
	if err := gw.Start(); err != nil {
		util.Fatalf("Failed to start gateway: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	util.Info("Hunt server started successfully. Press Ctrl+C to stop.")

	<-sigChan
	util.Info("Shutting down...")

	gw.Stop()
	policyServer.Stop()
	if pprofServer != nil {
		pprofServer.Stop()
	}
	if nrAgent != nil {
		nrAgent.Stop()
	}

	util.Info("Hunt server stopped")
}

// trimHexPrefix strips a leading 0x/0X so PRIVATE_KEY may be configured with
// or without the prefix, matching crypto.HexToECDSA's bare-hex expectation.
func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
