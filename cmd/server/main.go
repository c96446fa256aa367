package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/config"
	"github.com/eduardojeem/Mipos-sub008/internal/infra"
	"github.com/eduardojeem/Mipos-sub008/internal/metrics"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/repository/memory"
	"github.com/eduardojeem/Mipos-sub008/internal/router"
	"github.com/eduardojeem/Mipos-sub008/internal/service"
	"github.com/eduardojeem/Mipos-sub008/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// dev: pretty console, prod: JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	metrics.Register()

	var (
		db    *gorm.DB
		rdb   *redis.Client
		repos repository.Set
	)

	switch cfg.Storage {
	case "memory":
		repos = memory.New().Set()
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, loyalty retries and rate limiting disabled")
			rdb = nil
		}
	case "postgres", "":
		db, err = infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		repos = repository.NewSet(db)
	default:
		log.Fatal().Str("storage", cfg.Storage).Msg("unknown STORAGE backend")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A typed nil *Dispatcher inside the interface would look non-nil to
	// the sale service.
	var retry service.CreditRetryQueue
	if rdb != nil {
		retry = worker.NewDispatcher(rdb)
	}

	svcs := router.NewServices(cfg, repos, retry)

	if rdb != nil {
		pool := worker.NewPool(rdb)
		worker.NewLoyaltyCreditWorker(svcs.Loyalty).Register(pool)
		pool.Start(ctx, cfg.WorkerCount)

		worker.StartRetryCron(ctx, worker.RetryCronConfig{
			RDB:      rdb,
			Queues:   []string{worker.QueueLoyaltyCredit},
			Interval: time.Duration(cfg.LoyaltyRetryIntervalSeconds) * time.Second,
		})
	}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.SchedulerTimezone).Msg("invalid scheduler timezone")
	}
	sched, err := worker.StartScheduler(ctx, svcs.Loyalty, worker.SchedulerConfig{
		Location:   loc,
		ExpireAt:   cfg.LoyaltyExpireAt,
		BirthdayAt: cfg.LoyaltyBirthdayAt,
		RDB:        rdb,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	r := router.New(cfg, svcs, db, rdb)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("storage", cfg.Storage).Msgf("POS backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
