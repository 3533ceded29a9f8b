package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/basketbot/internal/blob/s3"
	"github.com/alanyoungcy/basketbot/internal/domain"
	"github.com/alanyoungcy/basketbot/internal/server"
	"github.com/alanyoungcy/basketbot/internal/server/handler"
	"github.com/alanyoungcy/basketbot/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// maxReplayLine bounds one JSONL snapshot in a replay file.
const maxReplayLine = 16 << 20

// ServerMode serves the HTTP API and the websocket hub until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering server mode", slog.Int("port", a.cfg.Server.Port))

	g, gctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, deps.Engine, a.logger, ws.Config{
		Profile:   deps.Engine.Profile().Name,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Limiter:     deps.RateLimiter,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Engine.Profile().Name, deps.HealthChecks, a.logger),
		Tick:    handler.NewTickHandler(deps.Engine, deps.Journal, a.logger),
		Profile: handler.NewProfileHandler(deps.Engine),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// replayLine is one line of replay output.
type replayLine struct {
	Timestamp int64 `json:"timestamp"`
	domain.TickResult
}

// ReplayMode feeds every snapshot of the configured JSONL input through the
// engine in order and writes one result line per tick. A snapshot without
// traderData inherits the previous tick's result, so the file replays as a
// single continuous session.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	rc := a.cfg.Replay
	log := a.logger.With(slog.String("input", rc.Input), slog.String("session", rc.Session))
	log.InfoContext(ctx, "entering replay mode")

	in, err := a.openReplayInput(ctx, deps, rc.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, closeOut, err := a.openReplayOutput(rc.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	n, err := replay(ctx, deps.Engine, rc.Session, in, out)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "replay complete", slog.Int("ticks", n))

	if rc.Archive && deps.Archiver != nil {
		archived, err := deps.Archiver.ArchiveSession(ctx, rc.Session)
		if err != nil {
			return fmt.Errorf("app: replay archive: %w", err)
		}
		log.InfoContext(ctx, "session archived", slog.Int64("records", archived))
	}
	return nil
}

// TickHandler runs one snapshot for a session.
type TickHandler interface {
	HandleTick(ctx context.Context, session string, state domain.TradingState) (domain.TickResult, error)
}

// replay runs every snapshot in r through h and writes results to w. Blank
// lines are skipped. It returns the number of ticks processed.
func replay(ctx context.Context, h TickHandler, session string, r io.Reader, w io.Writer) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	enc := json.NewEncoder(w)

	var (
		prev  string
		count int
		line  int
	)
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return count, err
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var state domain.TradingState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return count, fmt.Errorf("app: replay line %d: %w: %v", line, domain.ErrInvalidSnapshot, err)
		}
		if state.TraderData == "" {
			state.TraderData = prev
		}

		res, err := h.HandleTick(ctx, session, state)
		if err != nil {
			return count, fmt.Errorf("app: replay line %d: %w", line, err)
		}
		prev = res.TraderData
		count++

		if err := enc.Encode(replayLine{Timestamp: state.Timestamp, TickResult: res}); err != nil {
			return count, fmt.Errorf("app: replay write: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("app: replay read: %w", err)
	}
	return count, nil
}

func (a *App) openReplayInput(ctx context.Context, deps *Dependencies, input string) (io.ReadCloser, error) {
	if s3blob.IsObjectURI(input) {
		return openBlobInput(ctx, deps.BlobReader, input)
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("app: replay input: %w", err)
	}
	return f, nil
}

// openBlobInput opens an s3:// replay input, reporting a missing object as
// domain.ErrNotFound before any download starts.
func openBlobInput(ctx context.Context, blobs domain.BlobReader, uri string) (io.ReadCloser, error) {
	if blobs == nil {
		return nil, fmt.Errorf("app: replay input %s: s3 is not enabled", uri)
	}
	ok, err := blobs.Exists(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("app: replay input: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("app: replay input %s: %w", uri, domain.ErrNotFound)
	}
	rc, err := blobs.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("app: replay input: %w", err)
	}
	return rc, nil
}

// openReplayOutput returns the writer for replay results: the configured file,
// or the App's stdout when none is set.
func (a *App) openReplayOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return a.stdout, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("app: replay output: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("app: replay output: %w", err)
	}
	bw := bufio.NewWriter(f)
	return bw, func() {
		if err := bw.Flush(); err != nil {
			a.logger.Error("flush replay output", slog.String("error", err.Error()))
		}
		f.Close()
	}, nil
}
