// Package history implements the read-through history cache over the
// append-only metric snapshot tables.
package history

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/cache"
	"github.com/instatrack/instatrack/internal/metrics"
	"github.com/instatrack/instatrack/internal/task"
)

// TaskLookup resolves the task that owns a subject's history.
type TaskLookup interface {
	GetBySubject(ctx context.Context, kind task.Kind, subject string) (*task.Task, error)
}

// InfluencerStore reads and appends influencer snapshots.
type InfluencerStore interface {
	Append(ctx context.Context, s *task.InfluencerSnapshot) error
	ListByUsername(ctx context.Context, username string) ([]task.InfluencerSnapshot, error)
}

// PostStore reads and appends post snapshots.
type PostStore interface {
	Append(ctx context.Context, s *task.PostSnapshot) error
	ListByPostCode(ctx context.Context, postCode string) ([]task.PostSnapshot, error)
}

// HistoryCache is the cache surface the service needs.
type HistoryCache interface {
	GetHistory(ctx context.Context, key string) ([]byte, error)
	SetHistory(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	InvalidateHistory(ctx context.Context, key string) error
}

// Service serves subject history with a lazily populated cache and appends
// new snapshots while eagerly invalidating stale entries.
type Service struct {
	tasks       TaskLookup
	influencers InfluencerStore
	posts       PostStore
	cache       HistoryCache
	logger      *zap.Logger
}

// NewService creates a history service.
func NewService(tasks TaskLookup, influencers InfluencerStore, posts PostStore, historyCache HistoryCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:       tasks,
		influencers: influencers,
		posts:       posts,
		cache:       historyCache,
		logger:      logger,
	}
}

// GetUserHistory returns all influencer snapshots for a username, newest
// first. An empty result for an unknown username is not an error.
func (s *Service) GetUserHistory(ctx context.Context, username string) ([]task.InfluencerSnapshot, error) {
	key := cache.HistoryKey(username)
	if cached := s.readCached(ctx, key); cached != nil {
		var history []task.InfluencerSnapshot
		if err := json.Unmarshal(cached, &history); err == nil {
			metrics.HistoryCacheReads.WithLabelValues("hit").Inc()
			return history, nil
		}
		// A corrupt entry falls through to the store read and gets rewritten.
		s.logger.Warn("discarding undecodable history cache entry", zap.String("key", key))
	}
	metrics.HistoryCacheReads.WithLabelValues("miss").Inc()

	history, err := s.influencers.ListByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		s.populate(ctx, key, task.KindInfluencer, username, history)
	}
	return history, nil
}

// GetPostHistory returns all post snapshots for a post code, newest first.
func (s *Service) GetPostHistory(ctx context.Context, postCode string) ([]task.PostSnapshot, error) {
	key := cache.PostHistoryKey(postCode)
	if cached := s.readCached(ctx, key); cached != nil {
		var history []task.PostSnapshot
		if err := json.Unmarshal(cached, &history); err == nil {
			metrics.HistoryCacheReads.WithLabelValues("hit").Inc()
			return history, nil
		}
		s.logger.Warn("discarding undecodable history cache entry", zap.String("key", key))
	}
	metrics.HistoryCacheReads.WithLabelValues("miss").Inc()

	history, err := s.posts.ListByPostCode(ctx, postCode)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		s.populate(ctx, key, task.KindPost, postCode, history)
	}
	return history, nil
}

// AppendInfluencer appends one influencer snapshot and invalidates the
// subject's cache entry so the next read repopulates it.
func (s *Service) AppendInfluencer(ctx context.Context, snapshot *task.InfluencerSnapshot) error {
	if err := s.influencers.Append(ctx, snapshot); err != nil {
		return err
	}
	s.invalidate(ctx, cache.HistoryKey(snapshot.Username))
	return nil
}

// AppendPost appends one post snapshot and invalidates the subject's cache
// entry.
func (s *Service) AppendPost(ctx context.Context, snapshot *task.PostSnapshot) error {
	if err := s.posts.Append(ctx, snapshot); err != nil {
		return err
	}
	s.invalidate(ctx, cache.PostHistoryKey(snapshot.PostCode))
	return nil
}

func (s *Service) readCached(ctx context.Context, key string) []byte {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetHistory(ctx, key)
	if err != nil {
		s.logger.Warn("history cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return cached
}

// populate writes the history cache entry with TTL equal to the owning
// task's interval. Best effort: a failed population never fails the read,
// and orphaned history (no owning task) is simply not cached.
func (s *Service) populate(ctx context.Context, key string, kind task.Kind, subject string, history any) {
	if s.cache == nil {
		return
	}

	owner, err := s.tasks.GetBySubject(ctx, kind, subject)
	if err != nil {
		s.logger.Warn("history cache owner lookup failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if owner == nil || owner.IntervalSeconds <= 0 {
		return
	}

	payload, err := json.Marshal(history)
	if err != nil {
		s.logger.Warn("failed to serialize history for caching", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.cache.SetHistory(ctx, key, payload, owner.Interval()); err != nil {
		s.logger.Warn("history cache population failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateHistory(ctx, key); err != nil {
		s.logger.Warn("history cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
