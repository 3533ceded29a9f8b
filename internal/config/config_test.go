package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
mode = "replay"
log_level = "debug"

[strategy]
profile = "mean_reversion"
conversions = 3
volume_fraction = 0.5

[[strategy.products]]
symbol = "KELP"
class = "short_memory"
window = 20
fallback = 2000

[[strategy.baskets]]
composite = "GIFT"
threshold = 2.5
legs = [{ product = "KELP", ratio = 2 }]

[redis]
lock_ttl = "3s"

[replay]
input = "ticks.jsonl"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "replay", cfg.Mode)
	require.Equal(t, "mean_reversion", cfg.Strategy.Profile)
	require.NotNil(t, cfg.Strategy.Conversions)
	require.Equal(t, 3, *cfg.Strategy.Conversions)
	require.Equal(t, 0.5, cfg.Strategy.VolumeFraction)
	require.Len(t, cfg.Strategy.Products, 1)
	require.Equal(t, 20, cfg.Strategy.Products[0].Window)
	require.Equal(t, []LegConfig{{Product: "KELP", Ratio: 2}}, cfg.Strategy.Baskets[0].Legs)
	require.Equal(t, 3*time.Second, cfg.Redis.LockTTL.Duration)
	// Untouched sections keep their defaults.
	require.Equal(t, 24*time.Hour, cfg.Redis.StateTTL.Duration)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
mode: server
strategy:
  profile: half_volume
  products:
    - symbol: SQUID_INK
      class: long_memory
      window: 40
      short_window: 10
redis:
  enabled: true
  state_ttl: 1h
server:
  port: 9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "half_volume", cfg.Strategy.Profile)
	require.Nil(t, cfg.Strategy.Conversions)
	require.Equal(t, 10, cfg.Strategy.Products[0].ShortWindow)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, time.Hour, cfg.Redis.StateTTL.Duration)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASKETBOT_MODE", "replay")
	t.Setenv("BASKETBOT_REPLAY_INPUT", "s3://bucket/ticks.jsonl")
	t.Setenv("BASKETBOT_S3_ENABLED", "true")
	t.Setenv("BASKETBOT_STRATEGY_CONVERSIONS", "0")
	t.Setenv("BASKETBOT_REDIS_LOCK_TTL", "250ms")
	t.Setenv("BASKETBOT_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("BASKETBOT_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "replay", cfg.Mode)
	require.True(t, cfg.S3.Enabled)
	require.NotNil(t, cfg.Strategy.Conversions)
	require.Equal(t, 0, *cfg.Strategy.Conversions)
	require.Equal(t, 250*time.Millisecond, cfg.Redis.LockTTL.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.Equal(t, 8000, cfg.Server.Port, "unparsable values are ignored")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	cfg.LogLevel = "loud"
	cfg.Strategy.VolumeFraction = 1.5
	cfg.Strategy.Products = []ProductConfig{{Symbol: "KELP", Class: "psychic"}, {Symbol: "KELP", Class: "fixed"}}
	cfg.Strategy.Baskets = []BasketConfig{{Composite: "B", Legs: []LegConfig{{Product: "X", Ratio: 0}}}}
	cfg.Postgres.Enabled = true
	cfg.SQLite.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, `unknown mode "backtest"`)
	require.Contains(t, msg, `unknown log_level "loud"`)
	require.Contains(t, msg, "volume_fraction must be within [0, 1]")
	require.Contains(t, msg, `unknown class "psychic"`)
	require.Contains(t, msg, "duplicate symbol KELP")
	require.Contains(t, msg, "leg X ratio must be > 0")
	require.Contains(t, msg, "mutually exclusive")
}

func TestValidateReplayArchive(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Replay.Input = "ticks.jsonl"
	cfg.Replay.Archive = true

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "archive requires s3.enabled")
	require.Contains(t, err.Error(), "archive requires a postgres or sqlite journal")

	cfg.S3.Enabled = true
	cfg.SQLite.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestValidateRateLimitNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit = 60
	require.ErrorContains(t, cfg.Validate(), "rate_limit requires redis.enabled")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.State.SealSecret = "seal"
	cfg.Redis.Password = "pw"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.S3.SecretKey = "sk"
	cfg.Server.APIKey = "key"

	out := RedactedConfig(&cfg)
	require.Equal(t, "***", out.State.SealSecret)
	require.Equal(t, "***", out.Redis.Password)
	require.Equal(t, "***", out.Postgres.DSN)
	require.Equal(t, "***", out.S3.SecretKey)
	require.Equal(t, "***", out.Server.APIKey)
	require.Empty(t, out.S3.AccessKey, "empty secrets stay empty")
	require.Equal(t, "seal", cfg.State.SealSecret)

	out.Server.CORSOrigins[0] = "changed"
	require.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, Defaults(), *cfg)
}
