package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisListCommander interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// RedisBrokerConfig configures the Redis list broker.
type RedisBrokerConfig struct {
	Namespace  string
	PopTimeout time.Duration
}

// RedisBroker implements the broker over Redis lists: LPUSH to publish,
// blocking BRPOP to consume. Delivery is at-least-once; consumers are
// expected to be idempotent.
type RedisBroker struct {
	client     redisListCommander
	namespace  string
	popTimeout time.Duration
}

type redisEnvelope struct {
	ID        string            `json:"id"`
	Body      json.RawMessage   `json:"body"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Attempt   int               `json:"attempt"`
}

// NewRedisBroker creates a Redis-backed broker.
func NewRedisBroker(client redis.UniversalClient, cfg RedisBrokerConfig) *RedisBroker {
	return newRedisBrokerFromCommander(client, cfg)
}

func newRedisBrokerFromCommander(client redisListCommander, cfg RedisBrokerConfig) *RedisBroker {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "instatrack"
	}
	popTimeout := cfg.PopTimeout
	if popTimeout <= 0 {
		popTimeout = 2 * time.Second
	}
	return &RedisBroker{
		client:     client,
		namespace:  namespace,
		popTimeout: popTimeout,
	}
}

// Publish writes one message to the named queue.
func (b *RedisBroker) Publish(ctx context.Context, queue string, msg Message) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("redis broker is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	payload, err := json.Marshal(redisEnvelope{
		ID:        msg.ID,
		Body:      msg.Body,
		Headers:   msg.Headers,
		CreatedAt: msg.CreatedAt,
		Attempt:   msg.Attempt,
	})
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}

	if err := b.client.LPush(ctx, b.queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("publish queue message: %w", err)
	}
	return nil
}

// Consume processes messages from the named queue until context cancellation.
func (b *RedisBroker) Consume(ctx context.Context, queue string, cfg ConsumerConfig, handler Handler) {
	if b == nil || b.client == nil || handler == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	sleepFn := cfg.Sleep
	if sleepFn == nil {
		sleepFn = time.Sleep
	}

	for {
		if ctx.Err() != nil {
			return
		}

		values, err := b.client.BRPop(ctx, b.popTimeout, b.queueKey(queue)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			// Transient connectivity failure; back off briefly before retrying.
			sleepFn(b.popTimeout)
			continue
		}
		if len(values) != 2 {
			continue
		}

		var envelope redisEnvelope
		if err := json.Unmarshal([]byte(values[1]), &envelope); err != nil {
			continue
		}
		msg := Message{
			ID:        envelope.ID,
			Body:      envelope.Body,
			Headers:   envelope.Headers,
			CreatedAt: envelope.CreatedAt,
			Attempt:   envelope.Attempt,
		}

		if ShouldDropMessageByAge(msg, nowFn(), cfg.MaxMessageAge) {
			continue
		}
		if msg.Attempt <= 0 {
			msg.Attempt = 1
		}

		handleErr := handler(ctx, msg)
		if handleErr == nil {
			continue
		}

		delay, retry := cfg.RetryPolicy.NextDelay(msg.Attempt)
		if retry {
			msg.Attempt++
			sleepFn(delay)
			_ = b.Publish(ctx, queue, msg)
			continue
		}

		if cfg.DeadLetterQueue != "" {
			if msg.Headers == nil {
				msg.Headers = make(map[string]string)
			}
			msg.Headers["last_error"] = handleErr.Error()
			_ = b.Publish(ctx, cfg.DeadLetterQueue, msg)
		}
	}
}

// Depth returns the queued item count for one queue.
func (b *RedisBroker) Depth(queue string) int {
	if b == nil || b.client == nil || queue == "" {
		return 0
	}
	depth, err := b.client.LLen(context.Background(), b.queueKey(queue)).Result()
	if err != nil {
		return 0
	}
	return int(depth)
}

func (b *RedisBroker) queueKey(queue string) string {
	return b.namespace + ":queue:" + queue
}
