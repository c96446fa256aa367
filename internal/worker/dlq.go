package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Failed jobs wait in dlq:<queue> until the retry cron pushes them back to
// <queue>. After MaxJobAttempts they are parked in dlq:<queue>:dead and stay
// there until someone looks at them.
const (
	DLQPrefix  = "dlq:"
	DeadSuffix = ":dead"
)

type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// SendToDLQ records a failed execution of a job taken from queue. Errors are
// logged; the job is lost only if Redis itself is unreachable.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	data, err := json.Marshal(DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      attempts,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: encode entry")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Str("payload", string(payload)).Msg("dlq: push failed, job dropped")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Int("attempts", attempts).
		Str("reason", reason).
		Msg("dlq: job failed")
}

func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

func DeadLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue+DeadSuffix).Result()
}

// QueueStats is the backlog of one queue and its dead letter lists.
type QueueStats struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
	Dead    int64 `json:"dead"`
}

// Stats reads the three list lengths of queue in one round trip.
func Stats(ctx context.Context, rdb *redis.Client, queue string) (QueueStats, error) {
	var pending, failed, dead *redis.IntCmd
	_, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, queue)
		failed = p.LLen(ctx, DLQPrefix+queue)
		dead = p.LLen(ctx, DLQPrefix+queue+DeadSuffix)
		return nil
	})
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{Pending: pending.Val(), Failed: failed.Val(), Dead: dead.Val()}, nil
}
