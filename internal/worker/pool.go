package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const QueueLoyaltyCredit = "jobs:loyalty_credit"

// Job is the generic envelope for all async tasks. Attempts counts failed
// executions so far.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Handler executes one job payload. A returned error moves the job to the
// dead letter queue of its source queue.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP. Pushes go through a circuit
// breaker; while it is open EnqueueLoyaltyCredit fails fast with
// infra.ErrCircuitOpen.
type Dispatcher struct {
	rdb     *redis.Client
	breaker *infra.CircuitBreaker
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb, breaker: infra.NewCircuitBreaker(infra.DefaultCBConfig())}
}

// BreakerState reports the enqueue circuit state.
func (d *Dispatcher) BreakerState() infra.CBState {
	return d.breaker.State()
}

// EnqueueLoyaltyCredit pushes a loyalty credit retry to Redis.
func (d *Dispatcher) EnqueueLoyaltyCredit(ctx context.Context, job LoyaltyCreditJob) error {
	return d.enqueue(ctx, QueueLoyaltyCredit, JobLoyaltyCredit, job, 0)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}, attempts int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return d.breaker.Execute(func() error {
		return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data, Attempts: attempts})
	})
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes queues with a fixed number of goroutines. Each goroutine
// blocks on BRPOP, so idle workers cost nothing.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	queues   []string
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{rdb: rdb, handlers: map[string]Handler{}}
}

// Register binds jobType to h and adds queue to the polled set.
func (p *Pool) Register(queue, jobType string, h Handler) {
	p.handlers[jobType] = h
	for _, q := range p.queues {
		if q == queue {
			return
		}
	}
	p.queues = append(p.queues, queue)
}

// Start launches numWorkers goroutines that stop when ctx is done.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Strs("queues", p.queues).Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

// process runs one raw job. Undecodable jobs are dropped; unknown types and
// handler failures go to the DLQ.
func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, fmt.Sprintf("no handler for job type %q", job.Type), job.Attempts)
		return
	}
	if err := h(ctx, job.Payload); err != nil {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts+1)
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}
