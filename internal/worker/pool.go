package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hatitenang-backend/internal/models"
)

const (
	UsageQueue  = "queue:usage-events"
	maxAttempts = 3
	popTimeout  = 5 * time.Second
)

type usageStore interface {
	Create(ctx context.Context, e *models.UsageEvent) error
}

// queuedEvent is the payload stored in UsageQueue.
type queuedEvent struct {
	Event    models.UsageEvent `json:"event"`
	Attempts int               `json:"attempts"`
}

// Pool drains UsageQueue into the usage ledger.
type Pool struct {
	redis       *redis.Client
	store       usageStore
	workerCount int

	// enqueue and backoff are replaceable in tests.
	enqueue func(ctx context.Context, payload string) error
	backoff func(attempt int) time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, store usageStore, workerCount int) *Pool {
	p := &Pool{
		redis:       redisClient,
		store:       store,
		workerCount: workerCount,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
	p.enqueue = func(ctx context.Context, payload string) error {
		return redisClient.LPush(ctx, UsageQueue, payload).Err()
	}
	return p
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker(ctx, id)
		}(i)
	}

	slog.Info("usage workers started", "count", p.workerCount)
}

// Stop cancels the workers and waits for in-flight events to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		result, err := p.redis.BLPop(ctx, popTimeout, UsageQueue).Result()
		if err != nil {
			if ctx.Err() != nil {
				slog.Debug("usage worker shutting down", "worker", id)
				return
			}
			if !errors.Is(err, redis.Nil) {
				slog.Warn("usage queue pop failed", "worker", id, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
			continue
		}

		if len(result) < 2 {
			continue
		}

		// Detached so a shutdown does not abort a half-written event.
		if err := p.process(context.WithoutCancel(ctx), result[1]); err != nil {
			slog.Warn("usage event dropped", "worker", id, "error", err)
		}
	}
}

// process stores one queued payload. Store failures are re-queued with
// exponential backoff until maxAttempts; malformed payloads are dropped.
func (p *Pool) process(ctx context.Context, payload string) error {
	var job queuedEvent
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return fmt.Errorf("failed to parse usage event: %w", err)
	}

	err := p.store.Create(ctx, &job.Event)
	if err == nil {
		slog.Debug("usage event stored", "event_id", job.Event.ID, "endpoint", job.Event.Endpoint)
		return nil
	}

	job.Attempts++
	if job.Attempts >= maxAttempts {
		return fmt.Errorf("usage event %s failed permanently after %d attempts: %w", job.Event.ID, job.Attempts, err)
	}

	slog.Warn("usage event failed, retrying",
		"event_id", job.Event.ID,
		"attempt", job.Attempts,
		"error", err,
	)

	retry, _ := json.Marshal(job)
	time.AfterFunc(p.backoff(job.Attempts), func() {
		if err := p.enqueue(context.Background(), string(retry)); err != nil {
			slog.Warn("usage event re-queue failed", "event_id", job.Event.ID, "error", err)
		}
	})
	return nil
}

// QueueRecorder pushes usage events onto UsageQueue for the Pool to store.
type QueueRecorder struct {
	redis *redis.Client
}

func NewQueueRecorder(redisClient *redis.Client) *QueueRecorder {
	return &QueueRecorder{redis: redisClient}
}

func (q *QueueRecorder) Record(ctx context.Context, event models.UsageEvent) {
	payload, err := encodeEvent(event)
	if err != nil {
		slog.WarnContext(ctx, "usage event encode failed", "error", err)
		return
	}

	// The request may already be finishing; recording must not be cut short by it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := q.redis.LPush(ctx, UsageQueue, payload).Err(); err != nil {
		slog.WarnContext(ctx, "usage event enqueue failed", "error", err)
	}
}

func encodeEvent(event models.UsageEvent) (string, error) {
	b, err := json.Marshal(queuedEvent{Event: event})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
