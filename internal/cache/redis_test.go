package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisClient struct {
	values map[string]string
	ttls   map[string]time.Duration

	getErr    error
	setErr    error
	delErr    error
	existsErr error
	setNXErr  error

	deleted []string
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeRedisClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedisClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = asString(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedisClient) SetNX(_ context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if f.setNXErr != nil {
		return redis.NewBoolResult(false, f.setNXErr)
	}
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = asString(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	removed := int64(0)
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
		f.deleted = append(f.deleted, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedisClient) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.existsErr != nil {
		return redis.NewIntResult(0, f.existsErr)
	}
	found := int64(0)
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			found++
		}
	}
	return redis.NewIntResult(found, nil)
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return "1"
	}
}

func TestHistoryKeys(t *testing.T) {
	t.Parallel()

	if got := HistoryKey("natgeo"); got != "user_history:natgeo" {
		t.Fatalf("HistoryKey() = %q, want user_history:natgeo", got)
	}
	if got := PostHistoryKey("DAbCdEfGh"); got != "post_history:DAbCdEfGh" {
		t.Fatalf("PostHistoryKey() = %q, want post_history:DAbCdEfGh", got)
	}
}

func TestGetHistoryMissReturnsNil(t *testing.T) {
	t.Parallel()

	cache := newFromCommander(newFakeRedisClient(), nil)
	got, err := cache.GetHistory(context.Background(), HistoryKey("natgeo"))
	if err != nil {
		t.Fatalf("GetHistory() unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("GetHistory() = %q, want nil on miss", got)
	}
}

func TestSetAndGetHistory(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	cache := newFromCommander(client, nil)
	key := HistoryKey("natgeo")

	if err := cache.SetHistory(context.Background(), key, []byte(`[{"follower_count":1}]`), 30*time.Second); err != nil {
		t.Fatalf("SetHistory() unexpected error: %v", err)
	}
	if got := client.ttls[key]; got != 30*time.Second {
		t.Fatalf("history ttl = %s, want 30s", got)
	}

	got, err := cache.GetHistory(context.Background(), key)
	if err != nil {
		t.Fatalf("GetHistory() unexpected error: %v", err)
	}
	if string(got) != `[{"follower_count":1}]` {
		t.Fatalf("GetHistory() = %q", got)
	}
}

func TestSetHistoryRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	cache := newFromCommander(newFakeRedisClient(), nil)
	if err := cache.SetHistory(context.Background(), HistoryKey("natgeo"), []byte("[]"), 0); err == nil {
		t.Fatalf("SetHistory(ttl=0) expected error, got nil")
	}
}

func TestInvalidateHistoryDeletesKey(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	cache := newFromCommander(client, nil)
	key := HistoryKey("natgeo")
	client.values[key] = "[]"

	if err := cache.InvalidateHistory(context.Background(), key); err != nil {
		t.Fatalf("InvalidateHistory() unexpected error: %v", err)
	}
	if _, ok := client.values[key]; ok {
		t.Fatalf("history key still present after invalidation")
	}
}

func TestFallbackRoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	cache := newFromCommander(client, nil)

	if err := cache.SetFallback(context.Background(), "task-1", []byte(`{"follower_count":10}`), 90*time.Second); err != nil {
		t.Fatalf("SetFallback() unexpected error: %v", err)
	}
	if got := client.ttls["fallback:task-1"]; got != 90*time.Second {
		t.Fatalf("fallback ttl = %s, want 90s", got)
	}

	got, err := cache.GetFallback(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetFallback() unexpected error: %v", err)
	}
	if string(got) != `{"follower_count":10}` {
		t.Fatalf("GetFallback() = %q", got)
	}

	missing, err := cache.GetFallback(context.Background(), "task-2")
	if err != nil {
		t.Fatalf("GetFallback(absent) unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatalf("GetFallback(absent) = %q, want nil", missing)
	}
}

func TestPausedMarkerLifecycle(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	cache := newFromCommander(client, nil)
	ctx := context.Background()

	paused, err := cache.IsPaused(ctx, "task-1")
	if err != nil {
		t.Fatalf("IsPaused() unexpected error: %v", err)
	}
	if paused {
		t.Fatalf("IsPaused() = true before marking")
	}

	if err := cache.MarkPaused(ctx, "task-1"); err != nil {
		t.Fatalf("MarkPaused() unexpected error: %v", err)
	}
	paused, err = cache.IsPaused(ctx, "task-1")
	if err != nil {
		t.Fatalf("IsPaused() unexpected error: %v", err)
	}
	if !paused {
		t.Fatalf("IsPaused() = false after marking")
	}

	if err := cache.ClearPaused(ctx, "task-1"); err != nil {
		t.Fatalf("ClearPaused() unexpected error: %v", err)
	}
	paused, err = cache.IsPaused(ctx, "task-1")
	if err != nil {
		t.Fatalf("IsPaused() unexpected error: %v", err)
	}
	if paused {
		t.Fatalf("IsPaused() = true after clearing")
	}
}

func TestCycleLockIsExclusive(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	cache := newFromCommander(client, nil)
	ctx := context.Background()

	acquired, err := cache.AcquireCycleLock(ctx, "task-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireCycleLock() unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("first AcquireCycleLock() = false, want true")
	}
	if got := client.ttls["cycle_lock:task-1"]; got != time.Minute {
		t.Fatalf("cycle lock ttl = %s, want 1m", got)
	}

	acquired, err = cache.AcquireCycleLock(ctx, "task-1", time.Minute)
	if err != nil {
		t.Fatalf("second AcquireCycleLock() unexpected error: %v", err)
	}
	if acquired {
		t.Fatalf("second AcquireCycleLock() = true, want false while held")
	}

	if err := cache.ReleaseCycleLock(ctx, "task-1"); err != nil {
		t.Fatalf("ReleaseCycleLock() unexpected error: %v", err)
	}
	acquired, err = cache.AcquireCycleLock(ctx, "task-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireCycleLock() after release unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("AcquireCycleLock() after release = false, want true")
	}
}

func TestCacheErrorsPropagate(t *testing.T) {
	t.Parallel()

	client := newFakeRedisClient()
	client.getErr = errors.New("connection refused")
	client.existsErr = errors.New("connection refused")
	cache := newFromCommander(client, nil)
	ctx := context.Background()

	if _, err := cache.GetHistory(ctx, HistoryKey("natgeo")); err == nil {
		t.Fatalf("GetHistory() expected error, got nil")
	}
	if _, err := cache.IsPaused(ctx, "task-1"); err == nil {
		t.Fatalf("IsPaused() expected error, got nil")
	}
	if err := cache.Ping(ctx); err == nil {
		t.Fatalf("Ping() expected error, got nil")
	}
}

func TestNilCacheGuards(t *testing.T) {
	t.Parallel()

	var cache *Cache
	if err := cache.Close(); err != nil {
		t.Fatalf("Close(nil cache) unexpected error: %v", err)
	}
	if _, err := cache.GetHistory(context.Background(), "k"); err == nil {
		t.Fatalf("GetHistory(nil cache) expected error, got nil")
	}
}
