package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/config"
	"github.com/alanyoungcy/basketbot/internal/domain"
	"github.com/alanyoungcy/basketbot/internal/strategy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildProfileOverrides(t *testing.T) {
	conv := 0
	p, err := BuildProfile(config.StrategyConfig{
		Profile:        strategy.ProfileFairValue,
		Conversions:    &conv,
		VolumeFraction: 0.25,
		Products: []config.ProductConfig{
			{Symbol: "KELP", Class: "deviation", Window: 10, Threshold: 0.02, TradeSize: 3},
			{Symbol: "AMBER", Class: "fixed", Fallback: 42},
		},
		Baskets: []config.BasketConfig{
			{Composite: "PICNIC_BASKET2", Threshold: 7, Legs: []config.LegConfig{{Product: "JAMS", Ratio: 5}}},
			{Composite: "GIFT", Legs: []config.LegConfig{{Product: "AMBER", Ratio: 2}}},
		},
	}, strategy.DefaultRegistry())
	require.NoError(t, err)

	require.Equal(t, 0, p.Conversions)
	require.Equal(t, 0.25, p.VolumeFraction)
	require.Equal(t, strategy.ClassDeviation, p.Rules["KELP"].Class)
	require.Equal(t, 42.0, p.Rules["AMBER"].Fallback)
	require.Equal(t, strategy.ClassFixed, p.Rules["RAINFOREST_RESIN"].Class, "untouched rules survive")

	require.Len(t, p.Baskets, 3)
	require.Equal(t, []strategy.Leg{{Product: "JAMS", Ratio: 5}}, p.Baskets[1].Legs)
	require.Equal(t, 7.0, p.Baskets[1].Threshold)
	require.Equal(t, "GIFT", p.Baskets[2].Composite)

	_, err = strategy.NewTrader(p, nil, discardLogger())
	require.NoError(t, err)
}

func TestBuildProfileDefaultsKeepProfile(t *testing.T) {
	p, err := BuildProfile(config.StrategyConfig{Profile: strategy.ProfileHalfVolume}, strategy.DefaultRegistry())
	require.NoError(t, err)
	require.Equal(t, 0.5, p.VolumeFraction)
	require.Equal(t, 1, p.Conversions)
}

func TestBuildProfileErrors(t *testing.T) {
	_, err := BuildProfile(config.StrategyConfig{Profile: "nope"}, strategy.DefaultRegistry())
	require.ErrorContains(t, err, "fair_value")

	_, err = BuildProfile(config.StrategyConfig{
		Profile:  strategy.ProfileFairValue,
		Products: []config.ProductConfig{{Symbol: "X", Class: "psychic"}},
	}, strategy.DefaultRegistry())
	require.ErrorContains(t, err, "product X")
}

type echoHandler struct {
	seen []domain.TradingState
}

func (h *echoHandler) HandleTick(_ context.Context, _ string, state domain.TradingState) (domain.TickResult, error) {
	h.seen = append(h.seen, state)
	return domain.TickResult{TraderData: state.TraderData + "+"}, nil
}

func TestReplayChainsTraderData(t *testing.T) {
	in := strings.NewReader("{\"timestamp\":1}\n\n{\"timestamp\":2}\n{\"timestamp\":3,\"traderData\":\"reset\"}\n")
	var out bytes.Buffer
	h := &echoHandler{}

	n, err := replay(context.Background(), h, "s", in, &out)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "", h.seen[0].TraderData)
	require.Equal(t, "+", h.seen[1].TraderData)
	require.Equal(t, "reset", h.seen[2].TraderData)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, 1.0, first["timestamp"])
	require.Equal(t, "+", first["traderData"])
}

func TestReplayReportsBadLine(t *testing.T) {
	in := strings.NewReader("{\"timestamp\":1}\nnot json\n")
	n, err := replay(context.Background(), &echoHandler{}, "s", in, io.Discard)
	require.Equal(t, 1, n)
	require.ErrorContains(t, err, "line 2")
}

func TestRunReplayMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ticks.jsonl")
	ticks := []string{
		`{"timestamp":100,"order_depths":{"KELP":{"buy_orders":{"1999":1},"sell_orders":{"2001":-1}}}}`,
		`{"timestamp":200,"order_depths":{"KELP":{"buy_orders":{"2009":1},"sell_orders":{"2011":-1}}}}`,
	}
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(ticks, "\n")), 0o600))

	cfg := config.Defaults()
	cfg.Mode = config.ModeReplay
	cfg.Replay.Input = input
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	a := New(&cfg, discardLogger())
	a.stdout = &out
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	var last replayLine
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	require.Equal(t, int64(200), last.Timestamp)
	require.Equal(t, `{"price_history":{"KELP":[2000,2010]}}`, last.TraderData)
}

func TestRunReplayModeWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ticks.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(`{"timestamp":1}`+"\n"), 0o600))

	cfg := config.Defaults()
	cfg.Mode = config.ModeReplay
	cfg.Replay.Input = input
	cfg.Replay.Output = filepath.Join(dir, "out", "results.jsonl")

	a := New(&cfg, discardLogger())
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(cfg.Replay.Output)
	require.NoError(t, err)
	require.Contains(t, string(data), `"timestamp":1`)
}

type memBlobs struct {
	objects map[string]string
	gets    int
}

func (m *memBlobs) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	m.gets++
	body, ok := m.objects[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *memBlobs) Exists(_ context.Context, ref string) (bool, error) {
	if ref == "s3://replays/broken.jsonl" {
		return false, errors.New("access denied")
	}
	_, ok := m.objects[ref]
	return ok, nil
}

func TestOpenBlobInput(t *testing.T) {
	blobs := &memBlobs{objects: map[string]string{"s3://replays/day1.jsonl": "{\"timestamp\":1}\n"}}
	ctx := context.Background()

	_, err := openBlobInput(ctx, blobs, "s3://replays/missing.jsonl")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorContains(t, err, "s3://replays/missing.jsonl")
	require.Zero(t, blobs.gets, "a missing object is never downloaded")

	_, err = openBlobInput(ctx, blobs, "s3://replays/broken.jsonl")
	require.ErrorContains(t, err, "access denied")

	_, err = openBlobInput(ctx, nil, "s3://replays/day1.jsonl")
	require.ErrorContains(t, err, "s3 is not enabled")

	rc, err := openBlobInput(ctx, blobs, "s3://replays/day1.jsonl")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "{\"timestamp\":1}\n", string(data))
}

func TestRunReplayModeMissingBlobInput(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeReplay
	cfg.Replay.Input = "s3://replays/missing.jsonl"

	a := New(&cfg, discardLogger())
	defer a.Close()
	deps := &Dependencies{BlobReader: &memBlobs{}}
	err := a.ReplayMode(context.Background(), deps)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
