// Package scheduler runs one recurring dispatch loop per polling interval
// bucket and fans due tasks out as fire-and-forget fetch jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/metrics"
	"github.com/instatrack/instatrack/internal/task"
)

// FetchJob is the queue payload for one task fetch.
type FetchJob struct {
	JobID     string    `json:"job_id"`
	TaskID    string    `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	Attempt   int       `json:"attempt"`
}

// DueLister selects the active tasks for one interval bucket.
type DueLister interface {
	ListDue(ctx context.Context, intervalSeconds int) ([]*task.Task, error)
}

// JobPublisher publishes fetch jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, job FetchJob) error
}

// Scheduler owns the per-bucket tick loops. Each bucket fires on its own
// wall-clock cadence equal to the bucket duration and only ever selects
// tasks whose interval matches it exactly.
type Scheduler struct {
	tasks     DueLister
	publisher JobPublisher
	logger    *zap.Logger
	buckets   []int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// New creates a scheduler over the fixed interval buckets.
func New(tasks DueLister, publisher JobPublisher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tasks:     tasks,
		publisher: publisher,
		logger:    logger,
		buckets:   task.IntervalBuckets(),
		Now:       time.Now,
	}
}

// Start launches one ticker goroutine per bucket. Calling Start on a
// running scheduler restarts the loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, bucket := range s.buckets {
		s.wg.Add(1)
		go s.runBucketLoop(loopCtx, bucket)
	}
	s.logger.Info("scheduler started", zap.Int("buckets", len(s.buckets)))
}

// Stop cancels all bucket loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runBucketLoop(ctx context.Context, bucketSeconds int) {
	defer s.wg.Done()

	interval := time.Duration(bucketSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, bucketSeconds)
		}
	}
}

// Tick runs one dispatch pass for a bucket: select all active tasks with a
// matching interval and publish one fetch job per task. Jobs are
// fire-and-forget; publish failures are logged at the tick level and the
// tick itself is never retried.
func (s *Scheduler) Tick(ctx context.Context, bucketSeconds int) {
	bucketLabel := fmt.Sprintf("%ds", bucketSeconds)
	metrics.SchedulerTicks.WithLabelValues(bucketLabel).Inc()

	due, err := s.tasks.ListDue(ctx, bucketSeconds)
	if err != nil {
		s.logger.Error("scheduler tick failed to select due tasks",
			zap.Int("bucket_seconds", bucketSeconds),
			zap.Error(err),
		)
		return
	}
	if len(due) == 0 {
		return
	}

	now := s.Now()
	published := 0
	for _, t := range due {
		job := FetchJob{
			JobID:     fmt.Sprintf("%s:%d", t.ID, now.UnixNano()),
			TaskID:    t.ID,
			CreatedAt: now,
			Attempt:   1,
		}
		if err := s.publisher.PublishJob(ctx, job); err != nil {
			metrics.JobsEnqueued.WithLabelValues("failed").Inc()
			s.logger.Error("failed to publish fetch job",
				zap.String("task_id", t.ID),
				zap.Int("bucket_seconds", bucketSeconds),
				zap.Error(err),
			)
			continue
		}
		metrics.JobsEnqueued.WithLabelValues("published").Inc()
		published++
	}

	s.logger.Info("scheduler tick dispatched fetch jobs",
		zap.Int("bucket_seconds", bucketSeconds),
		zap.Int("due_tasks", len(due)),
		zap.Int("published", published),
	)
}
