package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

const (
	// DefaultSession names ticks submitted without a session id.
	DefaultSession = "default"
	// TickStream is the durable stream every tick record is appended to.
	TickStream = "stream:ticks"

	defaultLockTTL     = 10 * time.Second
	defaultRecentLimit = 500
)

// TickChannel returns the pub/sub channel carrying a session's tick records.
func TickChannel(session string) string {
	return "ch:ticks:" + session
}

// EngineDeps are the optional collaborators of an Engine. Nil fields are
// skipped.
type EngineDeps struct {
	States  domain.StateStore
	Locks   domain.LockManager
	Journal domain.TickJournal
	Bus     domain.SignalBus
	LockTTL time.Duration
}

// Engine runs a Trader on behalf of named sessions. It restores a session's
// trader state when the caller does not supply one, serializes ticks per
// session, journals every tick and fans records out on the signal bus.
// Infrastructure failures are logged and never fail a tick.
type Engine struct {
	trader  *Trader
	states  domain.StateStore
	locks   domain.LockManager
	journal domain.TickJournal
	bus     domain.SignalBus
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	recent      []domain.TickRecord
	recentLimit int
}

// NewEngine creates an Engine around trader.
func NewEngine(trader *Trader, deps EngineDeps, logger *slog.Logger) *Engine {
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Engine{
		trader:      trader,
		states:      deps.States,
		locks:       deps.Locks,
		journal:     deps.Journal,
		bus:         deps.Bus,
		lockTTL:     ttl,
		logger:      logger.With(slog.String("component", "strategy_engine")),
		now:         time.Now,
		recentLimit: defaultRecentLimit,
	}
}

// Profile returns the active trader profile.
func (e *Engine) Profile() Profile {
	return e.trader.Profile()
}

// HandleTick runs one tick for session. It returns domain.ErrSessionBusy when
// another tick for the same session holds the session lock.
func (e *Engine) HandleTick(ctx context.Context, session string, state domain.TradingState) (domain.TickResult, error) {
	if session == "" {
		session = DefaultSession
	}
	log := e.logger.With(slog.String("session", session))

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "session:"+session, e.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			return domain.TickResult{}, fmt.Errorf("strategy: session %s: %w", session, domain.ErrSessionBusy)
		case err != nil:
			log.WarnContext(ctx, "session lock unavailable, continuing unlocked", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	if state.TraderData == "" && e.states != nil {
		blob, err := e.states.Load(ctx, session)
		switch {
		case err == nil:
			state.TraderData = blob
		case errors.Is(err, domain.ErrNotFound):
		default:
			log.WarnContext(ctx, "load trader state failed", slog.String("error", err.Error()))
		}
	}

	res := e.trader.RunDetailed(state)

	if e.states != nil {
		if err := e.states.Save(ctx, session, res.TraderData); err != nil {
			log.WarnContext(ctx, "save trader state failed", slog.String("error", err.Error()))
		}
	}

	rec := domain.TickRecord{
		Session:     session,
		Timestamp:   state.Timestamp,
		Orders:      res.Orders,
		Conversions: res.Conversions,
		Baskets:     res.Baskets,
		StateSize:   len(res.TraderData),
		RecordedAt:  e.now().UTC(),
	}
	if e.journal != nil {
		if err := e.journal.Append(ctx, rec); err != nil {
			log.WarnContext(ctx, "journal append failed", slog.String("error", err.Error()))
		}
	}
	e.remember(rec)
	e.publish(ctx, log, rec)

	log.DebugContext(ctx, "tick processed",
		slog.Int64("timestamp", state.Timestamp),
		slog.Int("orders", rec.OrderCount()),
	)
	return res, nil
}

// Recent returns up to limit of the latest tick records, newest first.
func (e *Engine) Recent(limit int) []domain.TickRecord {
	if limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.recent)
	if limit > n {
		limit = n
	}
	out := make([]domain.TickRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

func (e *Engine) remember(rec domain.TickRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, rec)
	if overflow := len(e.recent) - e.recentLimit; overflow > 0 {
		e.recent = append([]domain.TickRecord(nil), e.recent[overflow:]...)
	}
}

func (e *Engine) publish(ctx context.Context, log *slog.Logger, rec domain.TickRecord) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		log.WarnContext(ctx, "encode tick record failed", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, TickChannel(rec.Session), payload); err != nil {
		log.WarnContext(ctx, "publish tick failed", slog.String("error", err.Error()))
	}
	if err := e.bus.StreamAppend(ctx, TickStream, payload); err != nil {
		log.WarnContext(ctx, "append tick stream failed", slog.String("error", err.Error()))
	}
}
