package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketbot/internal/domain"
	"github.com/alanyoungcy/basketbot/internal/server/handler"
	"github.com/alanyoungcy/basketbot/internal/strategy"
)

type sliceJournal struct {
	recs []domain.TickRecord
	err  error
}

func (j *sliceJournal) Append(_ context.Context, rec domain.TickRecord) error {
	j.recs = append(j.recs, rec)
	return nil
}

func (j *sliceJournal) ListBySession(_ context.Context, session string, opts domain.ListOpts) ([]domain.TickRecord, error) {
	if j.err != nil {
		return nil, j.err
	}
	var out []domain.TickRecord
	for _, r := range j.recs {
		if r.Session == session {
			out = append(out, r)
		}
	}
	if opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else {
		out = nil
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type busyEngine struct{}

func (busyEngine) HandleTick(context.Context, string, domain.TradingState) (domain.TickResult, error) {
	return domain.TickResult{}, domain.ErrSessionBusy
}

func (busyEngine) Recent(int) []domain.TickRecord { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, cfg Config, journal domain.TickJournal) http.Handler {
	t.Helper()
	tr, err := strategy.NewTrader(strategy.FairValueProfile(), nil, testLogger())
	require.NoError(t, err)
	engine := strategy.NewEngine(tr, strategy.EngineDeps{Journal: journal}, testLogger())

	checks := map[string]handler.Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	return newHandler(cfg, Handlers{
		Health:  handler.NewHealthHandler(strategy.ProfileFairValue, checks, testLogger()),
		Tick:    handler.NewTickHandler(engine, journal, testLogger()),
		Profile: handler.NewProfileHandler(engine),
	}, nil, testLogger())
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const resinTick = `{"timestamp":100,"order_depths":{"RAINFOREST_RESIN":{"buy_orders":{"10002":3},"sell_orders":{"9998":-2}}}}`

func TestSubmitTick(t *testing.T) {
	journal := &sliceJournal{}
	h := newTestHandler(t, Config{}, journal)

	rec := do(h, http.MethodPost, "/api/tick", resinTick, map[string]string{"X-Session-ID": "s1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.TickResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, []domain.Order{
		{Symbol: "RAINFOREST_RESIN", Price: 9998, Quantity: 2},
		{Symbol: "RAINFOREST_RESIN", Price: 10002, Quantity: -3},
	}, res.Orders["RAINFOREST_RESIN"])
	require.Equal(t, 1, res.Conversions)

	require.Len(t, journal.recs, 1)
	require.Equal(t, "s1", journal.recs[0].Session)
}

func TestSubmitTickBadJSON(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	rec := do(h, http.MethodPost, "/api/tick", `{"timestamp":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTickBusy(t *testing.T) {
	th := handler.NewTickHandler(busyEngine{}, nil, testLogger())
	rec := httptest.NewRecorder()
	th.Submit(rec, httptest.NewRequest(http.MethodPost, "/api/tick", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecentTicks(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	for _, ts := range []string{"1", "2", "3"} {
		rec := do(h, http.MethodPost, "/api/tick", `{"timestamp":`+ts+`}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(h, http.MethodGet, "/api/ticks/recent?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ticks []domain.TickRecord `json:"ticks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Ticks, 2)
	require.Equal(t, int64(3), body.Ticks[0].Timestamp)
	require.Equal(t, strategy.DefaultSession, body.Ticks[0].Session)
}

func TestSessionHistory(t *testing.T) {
	journal := &sliceJournal{recs: []domain.TickRecord{
		{Session: "a", Timestamp: 1}, {Session: "b", Timestamp: 2}, {Session: "a", Timestamp: 3},
	}}
	h := newTestHandler(t, Config{}, journal)

	rec := do(h, http.MethodGet, "/api/sessions/a/ticks?offset=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Ticks []domain.TickRecord `json:"ticks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Ticks, 1)
	require.Equal(t, int64(3), body.Ticks[0].Timestamp)

	journal.err = errors.New("db down")
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/api/sessions/a/ticks", "", nil).Code)
}

func TestSessionHistoryWithoutJournal(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	require.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/api/sessions/a/ticks", "", nil).Code)
}

func TestProfileEndpoint(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)
	rec := do(h, http.MethodGet, "/api/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p strategy.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, strategy.ProfileFairValue, p.Name)
	require.Len(t, p.Baskets, 2)
}

func TestHealthReportsDegradedDependency(t *testing.T) {
	h := newTestHandler(t, Config{APIKey: "k"}, nil)
	rec := do(h, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
}

func TestAuthGuardsAPI(t *testing.T) {
	h := newTestHandler(t, Config{APIKey: "k"}, nil)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/profile", "", nil).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/profile", "", map[string]string{"X-API-Key": "k"}).Code)
}
