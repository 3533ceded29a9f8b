package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/basketbot/internal/blob/s3"
	"github.com/alanyoungcy/basketbot/internal/cache/redis"
	"github.com/alanyoungcy/basketbot/internal/config"
	"github.com/alanyoungcy/basketbot/internal/crypto"
	"github.com/alanyoungcy/basketbot/internal/domain"
	"github.com/alanyoungcy/basketbot/internal/server/handler"
	"github.com/alanyoungcy/basketbot/internal/store/postgres"
	"github.com/alanyoungcy/basketbot/internal/store/sqlite"
	"github.com/alanyoungcy/basketbot/internal/strategy"
)

// Dependencies bundles everything the operating modes need. Every
// infrastructure field is nil when the matching backend is disabled.
type Dependencies struct {
	Engine *strategy.Engine

	// Cache
	States      domain.StateStore
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Journal
	Journal domain.TickJournal

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// HealthChecks are reported by GET /api/health.
	HealthChecks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.Pinger)}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.States = redis.NewStateStore(redisClient, cfg.Redis.StateTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- Journal: PostgreSQL or SQLite ---
	switch {
	case cfg.Postgres.Enabled:
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Journal = postgres.NewTickStore(pgClient.Pool())
		deps.HealthChecks["postgres"] = pgClient.Pool().Ping

	case cfg.SQLite.Enabled:
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Journal = store
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobReader = s3blob.NewReader(s3Client)
		if deps.Journal != nil {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Journal)
		}
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Trader ---
	profile, err := BuildProfile(cfg.Strategy, strategy.DefaultRegistry())
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	codec := strategy.NewStateCodec(crypto.NewSealer(cfg.State.SealSecret))
	trader, err := strategy.NewTrader(profile, codec, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Engine = strategy.NewEngine(trader, strategy.EngineDeps{
		States:  deps.States,
		Locks:   deps.LockManager,
		Journal: deps.Journal,
		Bus:     deps.SignalBus,
		LockTTL: cfg.Redis.LockTTL.Duration,
	}, logger)

	return deps, cleanup, nil
}

// BuildProfile resolves the named profile from reg and applies the
// configured overrides. Products and baskets replace same-named entries of
// the base profile and append new ones.
func BuildProfile(cfg config.StrategyConfig, reg *strategy.Registry) (strategy.Profile, error) {
	p, err := reg.Get(cfg.Profile)
	if err != nil {
		return strategy.Profile{}, fmt.Errorf("strategy profile: %w (available: %v)", err, reg.List())
	}

	if cfg.Conversions != nil {
		p.Conversions = *cfg.Conversions
	}
	if cfg.VolumeFraction > 0 {
		p.VolumeFraction = cfg.VolumeFraction
	}
	if cfg.DefaultCapacity > 0 {
		p.DefaultCapacity = cfg.DefaultCapacity
	}

	for _, pc := range cfg.Products {
		class, err := strategy.ParseProductClass(pc.Class)
		if err != nil {
			return strategy.Profile{}, fmt.Errorf("product %s: %w", pc.Symbol, err)
		}
		p.Rules[pc.Symbol] = strategy.Rule{
			Class:          class,
			Capacity:       pc.Capacity,
			Window:         pc.Window,
			ShortWindow:    pc.ShortWindow,
			Fallback:       pc.Fallback,
			Threshold:      pc.Threshold,
			TradeSize:      pc.TradeSize,
			Observation:    strategy.ObservationKind(pc.Observation),
			MinLevelVolume: pc.MinLevelVolume,
		}
	}

	for _, bc := range cfg.Baskets {
		spec := strategy.BasketSpec{Composite: bc.Composite, Threshold: bc.Threshold}
		for _, l := range bc.Legs {
			spec.Legs = append(spec.Legs, strategy.Leg{Product: l.Product, Ratio: l.Ratio})
		}
		replaced := false
		for i := range p.Baskets {
			if p.Baskets[i].Composite == spec.Composite {
				p.Baskets[i] = spec
				replaced = true
			}
		}
		if !replaced {
			p.Baskets = append(p.Baskets, spec)
		}
	}

	return p, nil
}
