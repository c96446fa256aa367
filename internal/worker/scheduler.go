package worker

// scheduler.go
// Daily loyalty maintenance (point expiration, birthday bonuses) on gocron.
// With several replicas, a Redis SETNX lock lets only one of them run each
// job per trigger.

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockPrefix = "lock:loyalty:"

// MaintenanceJobs is the loyalty engine surface the scheduler drives.
type MaintenanceJobs interface {
	ExpirePoints(ctx context.Context) (int, error)
	ProcessBirthdayBonuses(ctx context.Context) (int, error)
}

type SchedulerConfig struct {
	Location   *time.Location
	ExpireAt   string // HH:MM
	BirthdayAt string // HH:MM
	// RDB may be nil: jobs then run without the cross-replica lock.
	RDB     *redis.Client
	LockTTL time.Duration
}

// StartScheduler registers the maintenance jobs and starts gocron in the
// background. Stop the returned scheduler on shutdown.
func StartScheduler(ctx context.Context, jobs MaintenanceJobs, cfg SchedulerConfig) (*gocron.Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}

	s := gocron.NewScheduler(cfg.Location)
	if _, err := s.Every(1).Day().At(cfg.ExpireAt).Do(func() {
		RunLocked(ctx, cfg.RDB, "expire_points", cfg.LockTTL, jobs.ExpirePoints)
	}); err != nil {
		return nil, fmt.Errorf("schedule expire_points at %q: %w", cfg.ExpireAt, err)
	}
	if _, err := s.Every(1).Day().At(cfg.BirthdayAt).Do(func() {
		RunLocked(ctx, cfg.RDB, "birthday_bonus", cfg.LockTTL, jobs.ProcessBirthdayBonuses)
	}); err != nil {
		return nil, fmt.Errorf("schedule birthday_bonus at %q: %w", cfg.BirthdayAt, err)
	}
	s.StartAsync()

	log.Info().
		Str("timezone", cfg.Location.String()).
		Str("expire_at", cfg.ExpireAt).
		Str("birthday_at", cfg.BirthdayAt).
		Msg("scheduler: started")
	return s, nil
}

// RunLocked runs fn unless another holder owns the lock for name. It reports
// whether fn ran.
func RunLocked(ctx context.Context, rdb *redis.Client, name string, ttl time.Duration, fn func(context.Context) (int, error)) bool {
	if rdb != nil {
		owner, _ := os.Hostname()
		ok, err := rdb.SetNX(ctx, lockPrefix+name, fmt.Sprintf("%s:%d", owner, os.Getpid()), ttl).Result()
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("scheduler: lock failed, skipping run")
			return false
		}
		if !ok {
			log.Debug().Str("job", name).Msg("scheduler: lock held elsewhere, skipping run")
			return false
		}
	}

	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Str("job", name).Int("processed", n).Msg("scheduler: job failed")
		return true
	}
	log.Info().Str("job", name).Int("processed", n).Dur("took", time.Since(start)).Msg("scheduler: job finished")
	return true
}
