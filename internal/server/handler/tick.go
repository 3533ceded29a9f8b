package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// SessionHeader carries the session id of a submitted tick.
const SessionHeader = "X-Session-ID"

// maxTickBody bounds a submitted snapshot.
const maxTickBody = 4 << 20

// TickEngine runs ticks and remembers recent ones.
type TickEngine interface {
	HandleTick(ctx context.Context, session string, state domain.TradingState) (domain.TickResult, error)
	Recent(limit int) []domain.TickRecord
}

// TickHandler serves the tick submission and tick history endpoints.
type TickHandler struct {
	engine  TickEngine
	journal domain.TickJournal
	logger  *slog.Logger
}

// NewTickHandler creates a TickHandler. journal may be nil, in which case
// session history is unavailable.
func NewTickHandler(engine TickEngine, journal domain.TickJournal, logger *slog.Logger) *TickHandler {
	return &TickHandler{engine: engine, journal: journal, logger: logHandler(logger, "tick")}
}

// Submit runs one trading-state snapshot through the trader.
// POST /api/tick
func (h *TickHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var state domain.TradingState
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTickBody))
	if err := dec.Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", domain.ErrInvalidSnapshot, err).Error())
		return
	}

	session := r.Header.Get(SessionHeader)
	res, err := h.engine.HandleTick(r.Context(), session, state)
	if err != nil {
		if errors.Is(err, domain.ErrSessionBusy) {
			writeError(w, http.StatusConflict, "session is processing another tick")
			return
		}
		h.logger.ErrorContext(r.Context(), "tick failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process tick")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recentResponse struct {
	Ticks []domain.TickRecord `json:"ticks"`
}

// Recent returns the ticks this process handled most recently, newest first.
// GET /api/ticks/recent?limit=20
func (h *TickHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ticks := h.engine.Recent(queryInt(r, "limit", 20, 500))
	if ticks == nil {
		ticks = []domain.TickRecord{}
	}
	writeJSON(w, http.StatusOK, recentResponse{Ticks: ticks})
}

// SessionHistory lists a session's journaled ticks in processing order.
// GET /api/sessions/{session}/ticks?limit=50&offset=0
func (h *TickHandler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "tick journal is not configured")
		return
	}
	session := r.PathValue("session")
	ticks, err := h.journal.ListBySession(r.Context(), session, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list session ticks failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list ticks")
		return
	}
	if ticks == nil {
		ticks = []domain.TickRecord{}
	}
	writeJSON(w, http.StatusOK, recentResponse{Ticks: ticks})
}
