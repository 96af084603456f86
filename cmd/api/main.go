package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mbongo-ledger/mbongo/internal/archive"
	"github.com/mbongo-ledger/mbongo/internal/config"
	"github.com/mbongo-ledger/mbongo/internal/idempotency"
	"github.com/mbongo-ledger/mbongo/internal/infra"
	"github.com/mbongo-ledger/mbongo/internal/ledger"
	"github.com/mbongo-ledger/mbongo/internal/logging"
	"github.com/mbongo-ledger/mbongo/internal/notification"
	"github.com/mbongo-ledger/mbongo/internal/ratelimit"
	"github.com/mbongo-ledger/mbongo/internal/routes"
	"github.com/mbongo-ledger/mbongo/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var replays idempotency.Store
	if cache != nil {
		replays = idempotency.NewRedis(cache, cfg.IdempotencyTTL)
	} else {
		replays = idempotency.NewMemory(cfg.IdempotencyTTL)
	}

	var archiver *archive.Postgres
	archiveCtx, stopArchiver := context.WithCancel(ctx)
	defer stopArchiver()
	if db != nil {
		archiver = archive.NewPostgres(db, logger)
		go archiver.Run(archiveCtx)
	}

	limiter := ratelimit.New(cfg.RateLimitPerWindow, cfg.RateLimitWindow)
	notifier := notification.NewLoggerNotifier(logger)

	limits := ledger.Limits{PerTransferMax: cfg.PerTransferMax, DailyOutMax: cfg.DailyTransferLimit}
	var core *ledger.Coordinator
	if archiver != nil {
		core = ledger.NewCoordinator(limits, limiter, replays, notifier, archiver)
	} else {
		core = ledger.NewCoordinator(limits, limiter, replays, notifier, nil)
	}

	srv, err := server.New(routes.Deps{Cfg: cfg, Core: core, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	if archiver != nil {
		stopArchiver()
		archiver.Wait()
	}

	logger.Info("server exited cleanly")
}
