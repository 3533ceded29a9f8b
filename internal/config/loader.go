package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file at path, merges it on top of the built-in
// defaults, applies BASKETBOT_* environment variable overrides, and returns
// the final Config. Files ending in .yaml or .yml are parsed as YAML, anything
// else as TOML. An empty path skips the file. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BASKETBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the config file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "BASKETBOT_MODE")
	setStr(&cfg.LogLevel, "BASKETBOT_LOG_LEVEL")

	// ── Log ──
	setStr(&cfg.Log.File, "BASKETBOT_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "BASKETBOT_LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "BASKETBOT_LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "BASKETBOT_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "BASKETBOT_LOG_COMPRESS")

	// ── Strategy ──
	setStr(&cfg.Strategy.Profile, "BASKETBOT_STRATEGY_PROFILE")
	setIntPtr(&cfg.Strategy.Conversions, "BASKETBOT_STRATEGY_CONVERSIONS")
	setFloat64(&cfg.Strategy.VolumeFraction, "BASKETBOT_STRATEGY_VOLUME_FRACTION")
	setInt(&cfg.Strategy.DefaultCapacity, "BASKETBOT_STRATEGY_DEFAULT_CAPACITY")

	// ── State ──
	setStr(&cfg.State.SealSecret, "BASKETBOT_STATE_SEAL_SECRET")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BASKETBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BASKETBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASKETBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASKETBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BASKETBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BASKETBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BASKETBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.StateTTL, "BASKETBOT_REDIS_STATE_TTL")
	setDuration(&cfg.Redis.LockTTL, "BASKETBOT_REDIS_LOCK_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "BASKETBOT_REDIS_STREAM_MAX_LEN")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BASKETBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BASKETBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BASKETBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BASKETBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BASKETBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BASKETBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BASKETBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BASKETBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BASKETBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BASKETBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BASKETBOT_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setBool(&cfg.SQLite.Enabled, "BASKETBOT_SQLITE_ENABLED")
	setStr(&cfg.SQLite.Path, "BASKETBOT_SQLITE_PATH")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BASKETBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BASKETBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BASKETBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "BASKETBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BASKETBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BASKETBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BASKETBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BASKETBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "BASKETBOT_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "BASKETBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BASKETBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BASKETBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BASKETBOT_SERVER_RATE_LIMIT")

	// ── Replay ──
	setStr(&cfg.Replay.Input, "BASKETBOT_REPLAY_INPUT")
	setStr(&cfg.Replay.Output, "BASKETBOT_REPLAY_OUTPUT")
	setStr(&cfg.Replay.Session, "BASKETBOT_REPLAY_SESSION")
	setBool(&cfg.Replay.Archive, "BASKETBOT_REPLAY_ARCHIVE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setIntPtr(dst **int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = &n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
