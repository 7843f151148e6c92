// Package cache provides the Redis-backed ephemeral cache: history cache
// entries, fallback snapshots, paused markers, and per-task cycle locks.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache wraps Redis key operations with the application's key layout.
type Cache struct {
	client  redisCommander
	closeFn func() error
}

// New creates a cache over a Redis client.
func New(client redis.UniversalClient) *Cache {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newFromCommander(client, closeFn)
}

func newFromCommander(client redisCommander, closeFn func() error) *Cache {
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &Cache{client: client, closeFn: closeFn}
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	if c == nil || c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

// HistoryKey returns the history cache key for an influencer username.
func HistoryKey(username string) string {
	return "user_history:" + username
}

// PostHistoryKey returns the history cache key for a post code.
func PostHistoryKey(postCode string) string {
	return "post_history:" + postCode
}

// GetHistory returns the cached serialized history for a key, or nil on miss.
func (c *Cache) GetHistory(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("cache is not initialized")
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history cache entry: %w", err)
	}
	return raw, nil
}

// SetHistory stores a serialized history with the given TTL. TTL is the
// owning task's polling interval, so staleness never exceeds the cadence.
func (c *Cache) SetHistory(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if ttl <= 0 {
		return fmt.Errorf("history cache ttl must be > 0")
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set history cache entry: %w", err)
	}
	return nil
}

// InvalidateHistory deletes a history cache entry. Deleting an absent key
// is not an error.
func (c *Cache) InvalidateHistory(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate history cache entry: %w", err)
	}
	return nil
}

// SetFallback stores the last successful raw metrics payload for a task.
// The TTL bounds how long an upstream outage can be bridged.
func (c *Cache) SetFallback(ctx context.Context, taskID string, payload []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Set(ctx, fallbackKey(taskID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set fallback snapshot: %w", err)
	}
	return nil
}

// GetFallback returns the fallback snapshot for a task, or nil when absent
// or expired.
func (c *Cache) GetFallback(ctx context.Context, taskID string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("cache is not initialized")
	}
	raw, err := c.client.Get(ctx, fallbackKey(taskID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fallback snapshot: %w", err)
	}
	return raw, nil
}

// MarkPaused writes the paused marker for a task.
func (c *Cache) MarkPaused(ctx context.Context, taskID string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Set(ctx, pausedKey(taskID), 1, 0).Err(); err != nil {
		return fmt.Errorf("mark task paused: %w", err)
	}
	return nil
}

// ClearPaused removes the paused marker for a task.
func (c *Cache) ClearPaused(ctx context.Context, taskID string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Del(ctx, pausedKey(taskID)).Err(); err != nil {
		return fmt.Errorf("clear paused marker: %w", err)
	}
	return nil
}

// IsPaused reports whether the paused marker exists for a task.
func (c *Cache) IsPaused(ctx context.Context, taskID string) (bool, error) {
	if c == nil || c.client == nil {
		return false, fmt.Errorf("cache is not initialized")
	}
	count, err := c.client.Exists(ctx, pausedKey(taskID)).Result()
	if err != nil {
		return false, fmt.Errorf("check paused marker: %w", err)
	}
	return count > 0, nil
}

// AcquireCycleLock takes the per-task advisory lock that serializes fetch
// cycles for one task. Returns false when another cycle holds the lock.
func (c *Cache) AcquireCycleLock(ctx context.Context, taskID string, ttl time.Duration) (bool, error) {
	if c == nil || c.client == nil {
		return false, fmt.Errorf("cache is not initialized")
	}
	if ttl <= 0 {
		return true, nil
	}
	acquired, err := c.client.SetNX(ctx, cycleLockKey(taskID), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire cycle lock: %w", err)
	}
	return acquired, nil
}

// ReleaseCycleLock releases the per-task cycle lock.
func (c *Cache) ReleaseCycleLock(ctx context.Context, taskID string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Del(ctx, cycleLockKey(taskID)).Err(); err != nil {
		return fmt.Errorf("release cycle lock: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity through a throwaway key existence check.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache is not initialized")
	}
	if err := c.client.Exists(ctx, "instatrack:ping").Err(); err != nil {
		return fmt.Errorf("ping cache: %w", err)
	}
	return nil
}

func fallbackKey(taskID string) string {
	return "fallback:" + taskID
}

func pausedKey(taskID string) string {
	return "paused_task:" + taskID
}

func cycleLockKey(taskID string) string {
	return "cycle_lock:" + taskID
}
