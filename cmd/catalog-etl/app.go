package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/nft-catalog-etl/internal/config"
	"github.com/Sternrassler/nft-catalog-etl/pkg/aggregate"
	"github.com/Sternrassler/nft-catalog-etl/pkg/artifact"
	"github.com/Sternrassler/nft-catalog-etl/pkg/cache"
	"github.com/Sternrassler/nft-catalog-etl/pkg/client"
	"github.com/Sternrassler/nft-catalog-etl/pkg/logging"
	"github.com/Sternrassler/nft-catalog-etl/pkg/metrics"
	"github.com/Sternrassler/nft-catalog-etl/pkg/pagination"
	"github.com/Sternrassler/nft-catalog-etl/pkg/pipeline"
	"github.com/Sternrassler/nft-catalog-etl/pkg/ratelimit"
	"github.com/Sternrassler/nft-catalog-etl/pkg/store"
	"github.com/Sternrassler/nft-catalog-etl/pkg/transform"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the long-lived collaborators of the pipeline.
type app struct {
	cfg    *config.Config
	api    *client.Client
	writer *artifact.Writer
	db     *store.Database
	redis  *redis.Client
	cache  *cache.Manager
	logger zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.NewLogger("catalog-etl")}

	api, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	a.api = api

	writer, err := artifact.NewWriter(cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	a.writer = writer

	db, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	a.db = db
	a.logger.Info().Str("driver", cfg.Database.Driver).Msg("Connected to database")

	if cfg.CacheEnabled() {
		a.connectCache(ctx)
	}

	return a, nil
}

// connectCache enables the page cache. The cache is optional, so a Redis
// that cannot be reached only disables it.
func (a *app) connectCache(ctx context.Context) {
	opts, err := redis.ParseURL(a.cfg.Cache.RedisURL)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Invalid REDIS_URL - page cache disabled")
		return
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable - page cache disabled")
		rdb.Close()
		return
	}
	a.redis = rdb
	a.cache = cache.NewManager(rdb, a.cfg.Cache.TTL)
	a.logger.Info().Str("addr", opts.Addr).Dur("ttl", a.cfg.Cache.TTL).Msg("Page cache enabled")
}

// orchestrator wires a pipeline with a fresh rate limiter, so every run
// starts with an empty window.
func (a *app) orchestrator() *pipeline.Orchestrator {
	limiter := ratelimit.NewLimiter(a.cfg.LimiterConfig(), logging.NewLogger("rate-limiter"))

	fetcher := pagination.NewHTTPPageFetcher(a.api, limiter, a.writer, a.cfg.FetchConfig())
	if a.cache != nil {
		fetcher.WithCache(a.cache)
	}

	return pipeline.NewOrchestrator(
		pipeline.StoreSchema{DB: a.db},
		pagination.NewExtractor(fetcher, a.writer),
		transform.NewTransformer(),
		aggregate.NewAggregator(a.writer),
	)
}

func (a *app) run(ctx context.Context) (*pipeline.RunSummary, error) {
	return a.orchestrator().Run(ctx, pipeline.Options{Workers: a.cfg.API.Workers})
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.logger.Info().Msg("Database connection closed")
	return nil
}

// serveMetrics starts the metrics endpoint in the background when configured.
func serveMetrics(ctx context.Context, cfg *config.Config, logger zerolog.Logger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
			logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server failed")
		}
	}()
}
