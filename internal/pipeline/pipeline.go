// Package pipeline implements the fetch-with-fallback cycle that turns a
// due task into a persisted metric snapshot.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/metrics"
	"github.com/instatrack/instatrack/internal/task"
	"github.com/instatrack/instatrack/internal/upstream"
)

// fallbackTTLFactor bounds how many polling intervals a fallback snapshot
// may bridge. Outages longer than this produce real history gaps instead of
// indefinitely repeated stale numbers.
const fallbackTTLFactor = 3

// TaskLoader loads the task for a fetch cycle.
type TaskLoader interface {
	GetByID(ctx context.Context, id string) (*task.Task, error)
}

// Fetcher performs one upstream fetch attempt.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, bool)
}

// CycleCache is the cache surface a fetch cycle touches.
type CycleCache interface {
	SetFallback(ctx context.Context, taskID string, payload []byte, ttl time.Duration) error
	GetFallback(ctx context.Context, taskID string) ([]byte, error)
	IsPaused(ctx context.Context, taskID string) (bool, error)
	AcquireCycleLock(ctx context.Context, taskID string, ttl time.Duration) (bool, error)
	ReleaseCycleLock(ctx context.Context, taskID string) error
}

// HistoryAppender persists snapshots and invalidates the history cache.
type HistoryAppender interface {
	AppendInfluencer(ctx context.Context, snapshot *task.InfluencerSnapshot) error
	AppendPost(ctx context.Context, snapshot *task.PostSnapshot) error
}

// Pipeline executes fetch cycles.
type Pipeline struct {
	tasks    TaskLoader
	upstream Fetcher
	cache    CycleCache
	history  HistoryAppender
	logger   *zap.Logger
}

// New creates a pipeline.
func New(tasks TaskLoader, fetcher Fetcher, cycleCache CycleCache, history HistoryAppender, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tasks:    tasks,
		upstream: fetcher,
		cache:    cycleCache,
		history:  history,
		logger:   logger,
	}
}

// RunCycle executes one fetch cycle for a task. It never returns an error:
// a single task's failure must not abort the scheduling tick or sibling
// jobs, so every failure mode is logged and absorbed here.
func (p *Pipeline) RunCycle(ctx context.Context, taskID string) {
	t, err := p.tasks.GetByID(ctx, taskID)
	if err != nil {
		p.logger.Error("fetch cycle could not load task", zap.String("task_id", taskID), zap.Error(err))
		metrics.FetchCycles.WithLabelValues("unknown", "error").Inc()
		return
	}
	if t == nil {
		p.logger.Warn("fetch cycle for unknown task", zap.String("task_id", taskID))
		metrics.FetchCycles.WithLabelValues("unknown", "not_found").Inc()
		return
	}
	kind := string(t.Kind)

	// A paused marker means the pause landed after this job was enqueued.
	if paused, pauseErr := p.cache.IsPaused(ctx, taskID); pauseErr == nil && paused {
		p.logger.Debug("fetch cycle skipped for paused task", zap.String("task_id", taskID))
		metrics.FetchCycles.WithLabelValues(kind, "skipped_paused").Inc()
		return
	}

	// The advisory lock serializes cycles per task so a slow fetch on a
	// short bucket cannot interleave history writes. The TTL recovers the
	// lock if a cycle dies mid-flight.
	acquired, lockErr := p.cache.AcquireCycleLock(ctx, taskID, t.Interval())
	if lockErr != nil {
		p.logger.Warn("cycle lock unavailable; continuing unlocked", zap.String("task_id", taskID), zap.Error(lockErr))
	} else if !acquired {
		p.logger.Info("fetch cycle already in flight for task", zap.String("task_id", taskID))
		metrics.FetchCycles.WithLabelValues(kind, "skipped_locked").Inc()
		return
	}
	if lockErr == nil {
		defer func() {
			if releaseErr := p.cache.ReleaseCycleLock(ctx, taskID); releaseErr != nil {
				p.logger.Warn("failed to release cycle lock", zap.String("task_id", taskID), zap.Error(releaseErr))
			}
		}()
	}

	payload, degraded := p.obtainMetrics(ctx, t)
	if payload == nil {
		metrics.FetchCycles.WithLabelValues(kind, "noop").Inc()
		return
	}

	if err := p.appendSnapshot(ctx, t, payload); err != nil {
		p.logger.Error("failed to append metric snapshot",
			zap.String("task_id", t.ID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		metrics.FetchCycles.WithLabelValues(kind, "error").Inc()
		return
	}

	result := "live"
	if degraded {
		result = "fallback"
	}
	metrics.FetchCycles.WithLabelValues(kind, result).Inc()
	p.logger.Info("fetch cycle completed",
		zap.String("task_id", t.ID),
		zap.String("kind", kind),
		zap.String("subject", t.Subject()),
		zap.Bool("degraded", degraded),
	)
}

// obtainMetrics returns the normalized metrics payload for a task, either
// from a live fetch or from the fallback snapshot. The boolean reports
// whether the fallback path was used. A nil payload ends the cycle as a
// no-op for this tick.
func (p *Pipeline) obtainMetrics(ctx context.Context, t *task.Task) (json.RawMessage, bool) {
	request, err := upstream.RequestForTask(t)
	if err != nil {
		p.logger.Error("cannot resolve upstream request", zap.String("task_id", t.ID), zap.Error(err))
		return nil, false
	}

	data, ok := p.upstream.Fetch(ctx, request.Endpoint, request.Params)
	if ok {
		metrics.UpstreamRequests.WithLabelValues("success").Inc()

		payload, extractErr := upstream.ExtractMetricsPayload(t.Kind, data)
		if extractErr != nil {
			p.logger.Warn("upstream payload has unexpected shape",
				zap.String("task_id", t.ID),
				zap.Error(extractErr),
			)
			return p.readFallback(ctx, t)
		}

		ttl := time.Duration(fallbackTTLFactor) * t.Interval()
		if err := p.cache.SetFallback(ctx, t.ID, payload, ttl); err != nil {
			p.logger.Warn("failed to store fallback snapshot", zap.String("task_id", t.ID), zap.Error(err))
		} else {
			metrics.FallbackSnapshots.WithLabelValues("written").Inc()
		}
		return payload, false
	}

	metrics.UpstreamRequests.WithLabelValues("failure").Inc()
	p.logger.Warn("upstream fetch failed; checking fallback snapshot",
		zap.String("task_id", t.ID),
		zap.String("subject", t.Subject()),
	)
	return p.readFallback(ctx, t)
}

func (p *Pipeline) readFallback(ctx context.Context, t *task.Task) (json.RawMessage, bool) {
	fallback, err := p.cache.GetFallback(ctx, t.ID)
	if err != nil {
		p.logger.Error("fallback snapshot read failed", zap.String("task_id", t.ID), zap.Error(err))
		return nil, false
	}
	if fallback == nil {
		metrics.FallbackSnapshots.WithLabelValues("missing").Inc()
		p.logger.Error("no fallback snapshot available; skipping cycle", zap.String("task_id", t.ID))
		return nil, false
	}

	metrics.FallbackSnapshots.WithLabelValues("used").Inc()
	p.logger.Info("using fallback snapshot in degraded mode", zap.String("task_id", t.ID))
	return fallback, true
}

func (p *Pipeline) appendSnapshot(ctx context.Context, t *task.Task, payload json.RawMessage) error {
	switch t.Kind {
	case task.KindPost:
		postMetrics, err := upstream.DecodePostMetrics(payload)
		if err != nil {
			return err
		}
		return p.history.AppendPost(ctx, &task.PostSnapshot{
			PostCode:     t.PostCode,
			PostID:       postMetrics.PostID,
			LikeCount:    postMetrics.LikeCount,
			CommentCount: postMetrics.CommentCount,
			PlayCount:    postMetrics.PlayCount,
		})
	default:
		influencerMetrics, err := upstream.DecodeInfluencerMetrics(payload)
		if err != nil {
			return err
		}
		userID, _ := influencerMetrics.ID.Int64()
		return p.history.AppendInfluencer(ctx, &task.InfluencerSnapshot{
			Username:       t.Username,
			UserID:         userID,
			Bio:            influencerMetrics.Biography,
			FollowerCount:  influencerMetrics.FollowerCount,
			FollowingCount: influencerMetrics.FollowingCount,
			PostCount:      influencerMetrics.MediaCount,
		})
	}
}
