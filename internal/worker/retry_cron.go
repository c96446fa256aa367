package worker

// retry_cron.go
// Background goroutine that periodically drains dead letter queues back into
// their source queues. Jobs that already failed MaxJobAttempts times are
// parked in the :dead list instead.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	MaxJobAttempts = 5
	retryBatchSize = 50
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	RDB         *redis.Client
	Queues      []string
	Interval    time.Duration
	MaxAttempts int
}

// StartRetryCron launches a background goroutine that ticks every
// cfg.Interval and requeues DLQ entries. It respects the context for graceful
// shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = MaxJobAttempts
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				for _, q := range cfg.Queues {
					if _, _, err := RequeueDLQ(ctx, cfg.RDB, q, cfg.MaxAttempts); err != nil {
						log.Error().Err(err).Str("queue", q).Msg("retry_cron: requeue failed")
					}
				}
			}
		}
	}()
}

// RequeueDLQ moves up to retryBatchSize entries out of dlq:{queue}. Entries
// under maxAttempts go back to queue; the rest go to dlq:{queue}:dead.
func RequeueDLQ(ctx context.Context, rdb *redis.Client, queue string, maxAttempts int) (requeued, dead int, err error) {
	dlqKey := DLQPrefix + queue
	for i := 0; i < retryBatchSize; i++ {
		raw, err := rdb.RPop(ctx, dlqKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return requeued, dead, err
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: dropping undecodable entry")
			continue
		}

		if entry.Attempts >= maxAttempts {
			if err := rdb.LPush(ctx, dlqKey+DeadSuffix, raw).Err(); err != nil {
				return requeued, dead, err
			}
			dead++
			log.Error().
				Str("queue", queue).
				Str("job_type", entry.JobType).
				Int("attempts", entry.Attempts).
				Str("reason", entry.Reason).
				Msg("retry_cron: max attempts exceeded, job parked")
			continue
		}

		if err := push(ctx, rdb, queue, Job{Type: entry.JobType, Payload: entry.Payload, Attempts: entry.Attempts}); err != nil {
			return requeued, dead, err
		}
		requeued++
	}

	if requeued > 0 || dead > 0 {
		log.Info().
			Str("queue", queue).
			Int("requeued", requeued).
			Int("dead", dead).
			Msg("retry_cron: dead letter queue drained")
	}
	return requeued, dead, nil
}
