package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/cache"
	"github.com/actuallystonmai/content-roulette/internal/catalog"
	"github.com/actuallystonmai/content-roulette/internal/config"
	"github.com/actuallystonmai/content-roulette/internal/fetch"
	"github.com/actuallystonmai/content-roulette/internal/handler"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/model"
	"github.com/actuallystonmai/content-roulette/internal/pool"
	"github.com/actuallystonmai/content-roulette/internal/repository"
	"github.com/actuallystonmai/content-roulette/internal/router"
	"github.com/actuallystonmai/content-roulette/internal/scheduler"
	"github.com/actuallystonmai/content-roulette/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Output:     os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ State store ---------------
	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := migrateDown(ctx, cfg); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate down")
		}
		logging.Info().Msg("migrations dropped")
		return
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open state store")
	}
	defer store.Close()
	logging.Info().Str("backend", cfg.Storage.Backend).Msg("state store ready")

	// ------------ Result cache ---------------
	cacheStore, err := openCacheStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("failed to open result cache")
	}
	results := cache.New(cacheStore, cfg.Cache.TTL)

	// ------------ Catalog ---------------
	fetcher := fetch.New(
		&http.Client{Timeout: cfg.TMDB.Timeout},
		fetch.WithAttempts(uint(cfg.Fetch.Attempts)),
		fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
	)

	catalogCfg := catalog.DefaultConfig()
	catalogCfg.APIKey = cfg.TMDB.APIKey
	catalogCfg.BaseURL = cfg.TMDB.BaseURL
	catalogCfg.Language = cfg.TMDB.Language
	catalogCfg.WatchProvider = cfg.TMDB.WatchProvider
	catalogCfg.WatchRegion = cfg.TMDB.WatchRegion
	catalogCfg.WatchURLBase = cfg.TMDB.WatchURLBase
	catalogCfg.PlaceholderImage = cfg.TMDB.PlaceholderImage

	seed := cfg.Roulette.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	estimator := model.NewDurationEstimator(rand.NewSource(seed))
	content := catalog.NewService(catalogCfg, fetcher, results, estimator)

	// ------------ Sessions ---------------
	poolCfg := pool.Config{
		PoolPages:          cfg.Roulette.PoolPages,
		MaxPage:            cfg.Roulette.MaxPage,
		DispatchStagger:    cfg.Roulette.DispatchStagger,
		RegenerateAttempts: cfg.Roulette.RegenerateAttempts,
		DrawInterval:       cfg.Roulette.DrawInterval,
		RecentLimit:        cfg.Roulette.RecentLimit,
		LowWater:           cfg.Roulette.LowWater,
		PreloadCount:       cfg.Roulette.PreloadCount,
	}
	sessionSeed := seed
	sessions := service.NewService(poolCfg, content, store,
		service.WithDetailsTTL(cfg.Roulette.DetailTTL),
		service.WithRand(func() *rand.Rand {
			sessionSeed++
			return rand.New(rand.NewSource(sessionSeed))
		}),
	)

	// ------------ Scheduler ---------------
	sched := scheduler.NewScheduler()
	if cfg.Scheduler.Enabled {
		if err := sched.AddJob(cfg.Scheduler.CacheSweep, scheduler.NewCacheSweepJob(results)); err != nil {
			logging.Fatal().Err(err).Msg("failed to schedule cache sweep")
		}
		if err := sched.AddJob(cfg.Scheduler.SessionSweep, scheduler.NewSessionSweepJob(sessions, cfg.Roulette.SessionIdleTTL)); err != nil {
			logging.Fatal().Err(err).Msg("failed to schedule session sweep")
		}
		sched.Start()
		defer sched.Stop()
	}

	// ---------------- Server --------------------
	h := handler.NewHandler(content, sessions)
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.Setup(h, router.Options{
			CORSOrigins:       cfg.Server.CORSOrigins,
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			RequestTimeout:    cfg.Server.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "sqlite":
		st, err := repository.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "badger":
		st, err := repository.OpenBadger(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		pg, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.MigrateUp(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openPostgres(ctx context.Context, cfg *config.Config) (*repository.PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Storage.DBPoolSize)
	pgPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := waitForDB(ctx, pgPool); err != nil {
		pgPool.Close()
		return nil, err
	}
	logging.Info().Msg("connected to PostgreSQL")
	return repository.NewPostgresStore(pgPool), nil
}

func waitForDB(ctx context.Context, pgPool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pgPool.Ping(ctx); err == nil {
			return nil
		}
		logging.Info().Msgf("waiting for database... (%d/30)", i+1)
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func migrateDown(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Backend != "postgres" {
		return fmt.Errorf("migrate-down only applies to the postgres backend, got %q", cfg.Storage.Backend)
	}
	pg, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()
	return pg.MigrateDown(ctx)
}

func openCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewMemoryStore(), nil
	}
	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rs := cache.NewRedisStore(redis.NewClient(opts))
	if err := rs.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logging.Info().Msg("connected to Redis")
	return rs, nil
}
