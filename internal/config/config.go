// Package config defines the top-level configuration for the basket trader
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML or YAML file and then optionally overridden by BASKETBOT_* environment
// variables.
type Config struct {
	Mode     string         `toml:"mode" yaml:"mode"`
	LogLevel string         `toml:"log_level" yaml:"log_level"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Strategy StrategyConfig `toml:"strategy" yaml:"strategy"`
	State    StateConfig    `toml:"state" yaml:"state"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite" yaml:"sqlite"`
	S3       S3Config       `toml:"s3" yaml:"s3"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Replay   ReplayConfig   `toml:"replay" yaml:"replay"`
}

// LogConfig controls optional rotating file output. Stdout logging is always on.
type LogConfig struct {
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// StrategyConfig selects a built-in profile and optionally overrides parts of it.
type StrategyConfig struct {
	Profile string `toml:"profile" yaml:"profile"`
	// Conversions overrides the profile's conversions constant when set.
	Conversions *int `toml:"conversions" yaml:"conversions"`
	// VolumeFraction overrides the profile's volume fraction when > 0.
	VolumeFraction  float64         `toml:"volume_fraction" yaml:"volume_fraction"`
	DefaultCapacity int             `toml:"default_capacity" yaml:"default_capacity"`
	Products        []ProductConfig `toml:"products" yaml:"products"`
	Baskets         []BasketConfig  `toml:"baskets" yaml:"baskets"`
}

// ProductConfig replaces or adds one product rule.
type ProductConfig struct {
	Symbol         string  `toml:"symbol" yaml:"symbol"`
	Class          string  `toml:"class" yaml:"class"`
	Capacity       int     `toml:"capacity" yaml:"capacity"`
	Window         int     `toml:"window" yaml:"window"`
	ShortWindow    int     `toml:"short_window" yaml:"short_window"`
	Fallback       float64 `toml:"fallback" yaml:"fallback"`
	Threshold      float64 `toml:"threshold" yaml:"threshold"`
	TradeSize      int     `toml:"trade_size" yaml:"trade_size"`
	Observation    string  `toml:"observation" yaml:"observation"`
	MinLevelVolume int     `toml:"min_level_volume" yaml:"min_level_volume"`
}

// BasketConfig replaces or adds one basket definition.
type BasketConfig struct {
	Composite string      `toml:"composite" yaml:"composite"`
	Threshold float64     `toml:"threshold" yaml:"threshold"`
	Legs      []LegConfig `toml:"legs" yaml:"legs"`
}

// LegConfig is one basket component.
type LegConfig struct {
	Product string `toml:"product" yaml:"product"`
	Ratio   int    `toml:"ratio" yaml:"ratio"`
}

// StateConfig controls the trader state blob.
type StateConfig struct {
	// SealSecret enables HMAC sealing of traderData when non-empty.
	SealSecret string `toml:"seal_secret" yaml:"seal_secret"`
}

// RedisConfig holds Redis connection parameters and the keys' lifetimes.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled" yaml:"enabled"`
	Addr         string   `toml:"addr" yaml:"addr"`
	Password     string   `toml:"password" yaml:"password"`
	DB           int      `toml:"db" yaml:"db"`
	PoolSize     int      `toml:"pool_size" yaml:"pool_size"`
	MaxRetries   int      `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled" yaml:"tls_enabled"`
	StateTTL     duration `toml:"state_ttl" yaml:"state_ttl"`
	LockTTL      duration `toml:"lock_ttl" yaml:"lock_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len" yaml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters for the tick journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// SQLiteConfig holds the local tick journal location.
type SQLiteConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled" yaml:"enabled"`
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	Region         string `toml:"region" yaml:"region"`
	Bucket         string `toml:"bucket" yaml:"bucket"`
	AccessKey      string `toml:"access_key" yaml:"access_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style" yaml:"force_path_style"`
	Prefix         string `toml:"prefix" yaml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	APIKey      string   `toml:"api_key" yaml:"api_key"`
	// RateLimit is the number of requests per minute allowed per client;
	// 0 disables limiting. Requires redis.
	RateLimit int `toml:"rate_limit" yaml:"rate_limit"`
}

// ReplayConfig drives replay mode.
type ReplayConfig struct {
	// Input is a local JSON-lines file or an s3://bucket/key URI.
	Input   string `toml:"input" yaml:"input"`
	Output  string `toml:"output" yaml:"output"`
	Session string `toml:"session" yaml:"session"`
	Archive bool   `toml:"archive" yaml:"archive"`
}

// duration is a wrapper around time.Duration that supports string decoding
// (e.g. "5m", "30s") from both TOML and YAML.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     ModeServer,
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Strategy: StrategyConfig{
			Profile: "fair_value",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StateTTL:     duration{24 * time.Hour},
			LockTTL:      duration{10 * time.Second},
			StreamMaxLen: 10_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "basketbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "basketbot.db",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "basketbot-data",
			ForcePathStyle: true,
			Prefix:         "journal",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Replay: ReplayConfig{
			Session: "replay",
		},
	}
}

// Operating modes.
const (
	ModeServer = "server"
	ModeReplay = "replay"
)

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeServer: true,
	ModeReplay: true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validClasses mirrors the product classes the trader understands.
var validClasses = map[string]bool{
	"fixed":          true,
	"short_memory":   true,
	"long_memory":    true,
	"mean_reversion": true,
	"deviation":      true,
	"passive":        true,
	"unclassified":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Log
	if c.Log.File != "" && c.Log.MaxSizeMB < 1 {
		errs = append(errs, "log: max_size_mb must be >= 1 when file is set")
	}

	// Strategy
	if strings.TrimSpace(c.Strategy.Profile) == "" {
		errs = append(errs, "strategy: profile must not be empty")
	}
	if c.Strategy.VolumeFraction < 0 || c.Strategy.VolumeFraction > 1 {
		errs = append(errs, fmt.Sprintf("strategy: volume_fraction must be within [0, 1], got %v", c.Strategy.VolumeFraction))
	}
	if c.Strategy.DefaultCapacity < 0 {
		errs = append(errs, "strategy: default_capacity must be >= 0")
	}
	if c.Strategy.Conversions != nil && *c.Strategy.Conversions < 0 {
		errs = append(errs, "strategy: conversions must be >= 0")
	}
	seen := make(map[string]bool, len(c.Strategy.Products))
	for i, p := range c.Strategy.Products {
		if p.Symbol == "" {
			errs = append(errs, fmt.Sprintf("strategy.products[%d]: symbol must not be empty", i))
			continue
		}
		if seen[p.Symbol] {
			errs = append(errs, fmt.Sprintf("strategy.products[%d]: duplicate symbol %s", i, p.Symbol))
		}
		seen[p.Symbol] = true
		if !validClasses[strings.ToLower(p.Class)] {
			errs = append(errs, fmt.Sprintf("strategy.products[%d]: unknown class %q", i, p.Class))
		}
	}
	for i, b := range c.Strategy.Baskets {
		if b.Composite == "" {
			errs = append(errs, fmt.Sprintf("strategy.baskets[%d]: composite must not be empty", i))
		}
		if len(b.Legs) == 0 {
			errs = append(errs, fmt.Sprintf("strategy.baskets[%d]: at least one leg is required", i))
		}
		for _, l := range b.Legs {
			if l.Ratio <= 0 {
				errs = append(errs, fmt.Sprintf("strategy.baskets[%d]: leg %s ratio must be > 0", i, l.Product))
			}
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// SQLite
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}
	if c.SQLite.Enabled && c.Postgres.Enabled {
		errs = append(errs, "postgres and sqlite journals are mutually exclusive")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if mode == ModeServer {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled")
		}
	}

	// Replay
	if mode == ModeReplay {
		if c.Replay.Input == "" {
			errs = append(errs, "replay: input must not be empty")
		}
		if strings.HasPrefix(c.Replay.Input, "s3://") && !c.S3.Enabled {
			errs = append(errs, "replay: s3:// input requires s3.enabled")
		}
		if c.Replay.Archive {
			if !c.S3.Enabled {
				errs = append(errs, "replay: archive requires s3.enabled")
			}
			if !c.Postgres.Enabled && !c.SQLite.Enabled {
				errs = append(errs, "replay: archive requires a postgres or sqlite journal")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
