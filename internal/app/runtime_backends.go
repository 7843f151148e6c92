package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/config"
	queuepkg "github.com/instatrack/instatrack/internal/queue"
	"github.com/instatrack/instatrack/internal/scheduler"
)

type queueBroker interface {
	Publish(ctx context.Context, queue string, msg queuepkg.Message) error
	Consume(ctx context.Context, queue string, cfg queuepkg.ConsumerConfig, handler queuepkg.Handler)
	Depth(queue string) int
}

// fetchJobQueue adapts the generic broker to typed fetch jobs.
type fetchJobQueue struct {
	broker      queueBroker
	queueName   string
	dlqName     string
	retryPolicy queuepkg.RetryPolicy
}

func newFetchJobQueue(cfg *config.Config, redisClient redis.UniversalClient, logger *zap.Logger) *fetchJobQueue {
	queueName := "instatrack.fetch.jobs"
	dlqName := ""
	backend := "memory"

	if cfg != nil {
		if strings.TrimSpace(cfg.Worker.QueueName) != "" {
			queueName = strings.TrimSpace(cfg.Worker.QueueName)
		}
		dlqName = strings.TrimSpace(cfg.Worker.DeadLetter)
		backend = cfg.Worker.QueueBackend
	}

	broker := queueBroker(queuepkg.NewInMemoryBroker(10000))
	if backend == "redis" {
		if redisClient == nil {
			logger.Warn("redis queue backend requested without a redis client; falling back to in-memory queue")
		} else {
			broker = queuepkg.NewRedisBroker(redisClient, queuepkg.RedisBrokerConfig{
				Namespace: "instatrack",
			})
		}
	}

	return &fetchJobQueue{
		broker:      broker,
		queueName:   queueName,
		dlqName:     dlqName,
		retryPolicy: queuepkg.RetryPolicy{MaxAttempts: 3, Delays: []time.Duration{5 * time.Second, 30 * time.Second}},
	}
}

// PublishJob publishes one fetch job.
func (q *fetchJobQueue) PublishJob(ctx context.Context, job scheduler.FetchJob) error {
	if q == nil || q.broker == nil {
		return fmt.Errorf("fetch job queue is not initialized")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal fetch job: %w", err)
	}

	return q.broker.Publish(ctx, q.queueName, queuepkg.Message{
		ID:        job.JobID,
		Body:      body,
		CreatedAt: job.CreatedAt,
		Attempt:   job.Attempt,
	})
}

// Consume processes fetch jobs until context cancellation.
func (q *fetchJobQueue) Consume(
	ctx context.Context,
	handler func(ctx context.Context, job scheduler.FetchJob) error,
	maxMessageAge time.Duration,
	nowFn func() time.Time,
) {
	if q == nil || q.broker == nil || handler == nil {
		return
	}

	q.broker.Consume(ctx, q.queueName, queuepkg.ConsumerConfig{
		MaxMessageAge:   maxMessageAge,
		RetryPolicy:     q.retryPolicy,
		DeadLetterQueue: q.dlqName,
		Now:             nowFn,
	}, func(ctx context.Context, msg queuepkg.Message) error {
		var job scheduler.FetchJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return fmt.Errorf("decode fetch job: %w", err)
		}
		if job.JobID == "" {
			job.JobID = msg.ID
		}
		if job.Attempt <= 0 {
			job.Attempt = msg.Attempt
		}
		if job.CreatedAt.IsZero() {
			job.CreatedAt = msg.CreatedAt
		}
		return handler(ctx, job)
	})
}

// Depth returns the number of queued fetch jobs.
func (q *fetchJobQueue) Depth() int {
	if q == nil || q.broker == nil {
		return 0
	}
	return q.broker.Depth(q.queueName)
}

func newRedisClient(cfg *config.Config) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
