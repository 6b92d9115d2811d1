package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/fetch"
	"github.com/sawpanic/skinrun/internal/infrastructure/db"
	runlog "github.com/sawpanic/skinrun/internal/log"
	"github.com/sawpanic/skinrun/internal/metrics"
	"github.com/sawpanic/skinrun/internal/net/breakers"
	"github.com/sawpanic/skinrun/internal/net/ratelimit"
	"github.com/sawpanic/skinrun/internal/provider"
	"github.com/sawpanic/skinrun/internal/scan/pipeline"
	"github.com/sawpanic/skinrun/internal/scoring"
	"github.com/sawpanic/skinrun/internal/server"
	"github.com/sawpanic/skinrun/internal/skinport"
)

// openStore is swapped in tests
var openStore = cache.Open

// app holds the live components built from one configuration
type app struct {
	cfg       *config.Config
	store     cache.Store
	rates     *ratelimit.Controller
	limiter   *ratelimit.Limiter
	breakers  *breakers.Set
	metrics   *metrics.Registry
	scheduler *fetch.Scheduler
	skinport  *skinport.Client
	engine    *scoring.Engine
	db        *db.Manager
}

// newApp wires the cache, controllers, sources and optional database
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	store, err := openStore(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		if err != nil {
			store.Close()
		}
	}()

	reg := metrics.NewRegistry()
	rates := ratelimit.NewController(cfg.Rate, cfg.Sources)
	set := breakers.New(cfg.Breaker, cfg.Sources, reg.BreakerChanged)

	sources, err := provider.BuildAll(cfg.Sources, provider.NewHTTPClient(cfg.Fetch.MaxConnections))
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(cfg.Sources)
	worker := fetch.NewWorker(cfg, rates, store,
		fetch.WithLimiter(limiter),
		fetch.WithBreakers(set),
		fetch.WithObserver(reg),
	)
	coord := fetch.NewCoordinator(sources, worker, rates, set, cfg.Fetch.MaxRetries)
	scheduler := fetch.NewScheduler(coord, store, cfg.Cache.TTL, cfg.Fetch.ChunkSize, cfg.Fetch.ChunkCooldown,
		fetch.WithSchedulerObserver(reg),
	)

	manager, err := db.NewManager(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := manager.EnsureSchema(ctx); err != nil {
		manager.Close()
		return nil, err
	}

	log.Debug().
		Str("cache", cfg.Cache.Backend).
		Int("sources", len(sources)).
		Int("concurrency", cfg.Fetch.Concurrency).
		Bool("postgres", manager.IsEnabled()).
		Msg("Components initialized")

	return &app{
		cfg:       cfg,
		store:     store,
		rates:     rates,
		limiter:   limiter,
		breakers:  set,
		metrics:   reg,
		scheduler: scheduler,
		skinport:  skinport.New(cfg.Skinport, store),
		engine:    scoring.NewEngine(cfg.Scoring),
		db:        manager,
	}, nil
}

// pipeline builds a scan pipeline over the app's components
func (a *app) pipeline() *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithSummary(a.rates),
		pipeline.WithProgress(func(total int) pipeline.BatchProgress {
			return runlog.NewBatchProgress("prices", total)
		}),
	}
	if repo := a.db.Repository(); repo != nil {
		opts = append(opts, pipeline.WithSnapshots(repo.Snapshots))
	}
	return pipeline.New(a.skinport, a.scheduler, a.engine, opts...)
}

// serverDeps exposes the components the status server reports on
func (a *app) serverDeps() server.Deps {
	deps := server.Deps{
		Rates:    a.rates,
		Limiter:  a.limiter,
		Breakers: a.breakers,
		Store:    a.store,
		Metrics:  a.metrics,
	}
	if a.db.IsEnabled() {
		deps.DB = a.db.Health()
	}
	return deps
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Database close failed")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Cache close failed")
	}
}
