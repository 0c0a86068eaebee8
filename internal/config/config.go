// Package config loads and validates server configuration: the spec-mandated
// top-level environment variables (GAME_PORT, PRIVATE_KEY, WAGER_AMOUNT, ...)
// plus the ambient YAML/env sections (log, redis, policy, notify, newrelic,
// profiling) in the same Viper shape the pool server uses for its own
// nested config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the hunt server.
type Config struct {
	Game      GameConfig      `mapstructure:"game"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	Log       LogConfig       `mapstructure:"log"`
}

// GameConfig carries the spec's external-interface environment variables
// verbatim: these names are part of the wire contract, not an internal
// convention, so they are bound without any prefix.
type GameConfig struct {
	Port               int     `mapstructure:"game_port"`
	PrivateKey         string  `mapstructure:"private_key"`
	WagerAmount        float64 `mapstructure:"wager_amount"`
	HarvestDurationMs  int64   `mapstructure:"harvest_duration_ms"`
	DigDurationMs      int64   `mapstructure:"dig_duration_ms"`
	ChestFindRadius    float64 `mapstructure:"chest_find_radius"`
	GameTimeoutMs      int64   `mapstructure:"game_timeout_ms"`
	MaxSpeed           float64 `mapstructure:"max_speed"`
	CountdownMs        int64   `mapstructure:"countdown_ms"`
	MinPlayers         int     `mapstructure:"min_players"`
	MaxPlayers         int     `mapstructure:"max_players"`
	SpeedTolerance     float64 `mapstructure:"speed_tolerance"`
	HarvestProximity   float64 `mapstructure:"harvest_proximity"`
	SyncBroadcastMs    int64   `mapstructure:"sync_broadcast_rate_ms"`
	PositionMinInterval int64  `mapstructure:"position_min_interval_ms"`
	EndedGraceMs       int64   `mapstructure:"ended_grace_ms"`
	BerryBonus         float64 `mapstructure:"berry_bonus"`
	DigMultiplier      float64 `mapstructure:"dig_multiplier"`
}

// BrokerConfig configures the off-chain payment-channel broker connection.
type BrokerConfig struct {
	WSURL      string `mapstructure:"ws_url"`
	Token      string `mapstructure:"token"`
	Custody    string `mapstructure:"custody"`
	Adjudicator string `mapstructure:"adjudicator"`
	RPCURL     string `mapstructure:"rpc_url"`
	Asset      string `mapstructure:"asset"`
}

// RedisConfig defines Redis connection settings for the policy store.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PolicyConfig defines abuse-prevention settings.
type PolicyConfig struct {
	BanningEnabled   bool          `mapstructure:"banning_enabled"`
	BanTimeout       time.Duration `mapstructure:"ban_timeout"`
	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	ConnectionLimit  int32         `mapstructure:"connection_limit"`
}

// NotifyConfig defines webhook notification settings.
type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
}

// NewRelicConfig configures the optional APM agent.
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	LicenseKey string `mapstructure:"license_key"`
	AppName    string `mapstructure:"app_name"`
}

// ProfilingConfig configures the optional pprof debug server.
type ProfilingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// specEnvVars maps the spec's literal environment variable names onto the
// dotted Viper keys they populate, bound with no prefix since these names
// are the server's documented external contract.
var specEnvVars = map[string]string{
	"GAME_PORT":                "game.game_port",
	"PRIVATE_KEY":              "game.private_key",
	"WAGER_AMOUNT":             "game.wager_amount",
	"HARVEST_DURATION_MS":      "game.harvest_duration_ms",
	"DIG_DURATION_MS":          "game.dig_duration_ms",
	"CHEST_FIND_RADIUS":        "game.chest_find_radius",
	"GAME_TIMEOUT_MS":          "game.game_timeout_ms",
	"MAX_SPEED":                "game.max_speed",
	"COUNTDOWN_MS":             "game.countdown_ms",
	"YELLOW_WS_URL":            "broker.ws_url",
	"YELLOW_TOKEN":             "broker.token",
	"YELLOW_CUSTODY":           "broker.custody",
	"YELLOW_ADJUDICATOR":       "broker.adjudicator",
	"RPC_URL":                  "broker.rpc_url",
}

// Load reads configuration from an optional file, the spec's literal
// environment variables, and HUNT_-prefixed environment variables for the
// ambient sections (log, redis, policy, notify, newrelic, profiling).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hunt-server")
	}

	v.SetEnvPrefix("HUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for envVar, key := range specEnvVars {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("binding %s: %w", envVar, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.game_port", 3002)
	v.SetDefault("game.wager_amount", 5.0)
	v.SetDefault("game.harvest_duration_ms", 3000)
	v.SetDefault("game.dig_duration_ms", 3000)
	v.SetDefault("game.chest_find_radius", 2.0)
	v.SetDefault("game.game_timeout_ms", 1_800_000)
	v.SetDefault("game.max_speed", 40.0)
	v.SetDefault("game.countdown_ms", 10_000)
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.speed_tolerance", 1.5)
	v.SetDefault("game.harvest_proximity", 5.0)
	v.SetDefault("game.sync_broadcast_rate_ms", 100)
	v.SetDefault("game.position_min_interval_ms", 50)
	v.SetDefault("game.ended_grace_ms", 10_000)
	v.SetDefault("game.berry_bonus", 0.08)
	v.SetDefault("game.dig_multiplier", 0.90)

	v.SetDefault("broker.asset", "usdc")

	v.SetDefault("redis.url", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")

	v.SetDefault("policy.banning_enabled", true)
	v.SetDefault("policy.ban_timeout", "30m")
	v.SetDefault("policy.rate_limit_enabled", true)
	v.SetDefault("policy.connection_limit", 10)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.discord_url", "")
	v.SetDefault("notify.telegram_bot", "")
	v.SetDefault("notify.telegram_chat", "")

	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.license_key", "")
	v.SetDefault("newrelic.app_name", "hunt-server")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.bind", "127.0.0.1:6060")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}

// Validate checks configuration for errors, enforcing the spec's Fatal
// error case: missing PRIVATE_KEY must stop the server before it binds.
func (c *Config) Validate() error {
	if c.Game.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}
	if c.Game.Port <= 0 || c.Game.Port > 65535 {
		return fmt.Errorf("GAME_PORT must be a valid port number")
	}
	if c.Game.WagerAmount <= 0 {
		return fmt.Errorf("WAGER_AMOUNT must be positive")
	}
	if c.Game.MinPlayers < 2 {
		return fmt.Errorf("game.min_players must be >= 2")
	}
	if c.Game.MinPlayers > c.Game.MaxPlayers {
		return fmt.Errorf("game.min_players must be <= game.max_players")
	}
	if c.Broker.WSURL == "" {
		return fmt.Errorf("YELLOW_WS_URL is required")
	}
	return nil
}
