package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeReplay
	cfg.LogLevel = "warn"
	cfg.Log.File = filepath.Join(t.TempDir(), "basketbot.log")

	logger, closeLog := newLogger(&cfg)
	logger.Info("hidden")
	logger.Warn("visible", slog.String("session", "s1"))
	closeLog()

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), `"msg":"visible"`)
	require.Contains(t, string(data), `"session":"s1"`)
}
