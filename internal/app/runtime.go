// Package app wires the service components into a single runtime: storage,
// cache, queue, registry, pipeline, scheduler, and the HTTP surface.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/api"
	"github.com/instatrack/instatrack/internal/cache"
	"github.com/instatrack/instatrack/internal/config"
	"github.com/instatrack/instatrack/internal/health"
	"github.com/instatrack/instatrack/internal/history"
	"github.com/instatrack/instatrack/internal/pipeline"
	"github.com/instatrack/instatrack/internal/registry"
	"github.com/instatrack/instatrack/internal/scheduler"
	"github.com/instatrack/instatrack/internal/store"
	"github.com/instatrack/instatrack/internal/upstream"
)

const (
	dependencyProbeInterval  = 30 * time.Second
	upstreamFailureThreshold = 3
)

// Runtime is the application runtime orchestrator.
type Runtime struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient redis.UniversalClient
	cache       *cache.Cache
	jobs        *fetchJobQueue
	registry    *registry.Registry
	history     *history.Service
	pipeline    *pipeline.Pipeline
	scheduler   *scheduler.Scheduler
	upstream    *upstream.Client
	evaluator   *health.StatusEvaluator

	mu                    sync.RWMutex
	postgresHealthy       bool
	redisHealthy          bool
	schedulerHealthy      bool
	consumerHealthy       bool
	upstreamHealthy       bool
	upstreamFailureStreak int

	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRuntime opens the runtime dependencies and assembles the components.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	redisClient := newRedisClient(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup; cache and queue will recover when it returns", zap.Error(err))
	}

	appCache := cache.New(redisClient)
	jobs := newFetchJobQueue(cfg, redisClient, logger)

	taskRepo := store.NewTaskRepo(db)
	influencerRepo := store.NewInfluencerHistoryRepo(db)
	postRepo := store.NewPostHistoryRepo(db)

	upstreamClient := upstream.NewClient(
		&http.Client{Timeout: cfg.Upstream.RequestTimeout},
		upstream.ClientConfig{
			BaseURL:       cfg.Upstream.BaseURL,
			APIKey:        cfg.Upstream.APIKey,
			RatePerSecond: cfg.Upstream.RatePerSecond,
		},
		logger,
	)

	taskRegistry := registry.New(taskRepo, appCache, logger)
	historyService := history.NewService(taskRepo, influencerRepo, postRepo, appCache, logger)

	runtime := &Runtime{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		redisClient:     redisClient,
		cache:           appCache,
		jobs:            jobs,
		registry:        taskRegistry,
		history:         historyService,
		upstream:        upstreamClient,
		evaluator:       health.NewStatusEvaluator(),
		postgresHealthy: true,
		redisHealthy:    true,
		upstreamHealthy: true,
		Now:             time.Now,
	}

	fetcher := &trackedFetcher{client: upstreamClient, runtime: runtime}
	runtime.pipeline = pipeline.New(taskRepo, fetcher, appCache, historyService, logger)
	runtime.scheduler = scheduler.New(taskRepo, jobs, logger)

	return runtime, nil
}

// Handler returns the combined HTTP handler.
func (r *Runtime) Handler(metricsHandler http.Handler) http.Handler {
	apiRouter := api.NewHandlers(r.registry, r.history, r.logger).Routes()
	healthHandler := health.NewHandler(r)
	return NewHTTPHandler(apiRouter, metricsHandler, healthHandler)
}

// Start launches the scheduler, the fetch job consumers, and the dependency
// probe loop.
func (r *Runtime) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.workerCancel != nil {
		r.workerCancel()
	}
	r.workerCancel = cancel
	r.schedulerHealthy = true
	r.consumerHealthy = true
	r.mu.Unlock()

	r.scheduler.Start(workerCtx)

	workers := r.cfg.Worker.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		r.workerWG.Add(1)
		go r.runConsumer(workerCtx)
	}

	r.workerWG.Add(1)
	go r.runDependencyProbe(workerCtx)

	r.logger.Info("runtime started",
		zap.Int("fetch_workers", workers),
		zap.String("queue_backend", r.cfg.Worker.QueueBackend),
		zap.Bool("upstream_configured", r.upstream.Configured()),
	)
}

// Stop shuts the runtime down and closes its resources.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.workerCancel != nil {
		r.workerCancel()
		r.workerCancel = nil
	}
	r.schedulerHealthy = false
	r.consumerHealthy = false
	r.mu.Unlock()

	r.scheduler.Stop()
	r.workerWG.Wait()

	if err := r.cache.Close(); err != nil {
		r.logger.Warn("failed to close redis client", zap.Error(err))
	}
	if err := r.db.Close(); err != nil {
		r.logger.Warn("failed to close database", zap.Error(err))
	}
	r.logger.Info("runtime stopped")
}

// QueueDepth returns the number of queued fetch jobs.
func (r *Runtime) QueueDepth() int {
	return r.jobs.Depth()
}

// CurrentStatus returns current health status.
func (r *Runtime) CurrentStatus(_ context.Context) health.Status {
	r.mu.RLock()
	input := health.Input{
		PostgresHealthy:    r.postgresHealthy,
		RedisHealthy:       r.redisHealthy,
		SchedulerHealthy:   r.schedulerHealthy,
		ConsumerHealthy:    r.consumerHealthy,
		UpstreamConfigured: r.upstream.Configured(),
		UpstreamHealthy:    r.upstreamHealthy,
	}
	r.mu.RUnlock()
	return r.evaluator.Evaluate(input)
}

func (r *Runtime) runConsumer(ctx context.Context) {
	defer r.workerWG.Done()

	r.jobs.Consume(ctx, func(ctx context.Context, job scheduler.FetchJob) error {
		r.pipeline.RunCycle(ctx, job.TaskID)
		return nil
	}, r.cfg.Worker.MaxMessageAge, r.Now)
}

// runDependencyProbe periodically pings postgres and redis so readiness
// reflects real connectivity rather than startup state.
func (r *Runtime) runDependencyProbe(ctx context.Context) {
	defer r.workerWG.Done()

	ticker := time.NewTicker(dependencyProbeInterval)
	defer ticker.Stop()

	r.probeDependencies(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeDependencies(ctx)
		}
	}
}

func (r *Runtime) probeDependencies(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	postgresHealthy := r.db.PingContext(probeCtx) == nil
	redisHealthy := r.cache.Ping(probeCtx) == nil

	r.mu.Lock()
	previousPostgres, previousRedis := r.postgresHealthy, r.redisHealthy
	r.postgresHealthy = postgresHealthy
	r.redisHealthy = redisHealthy
	r.mu.Unlock()

	if postgresHealthy != previousPostgres {
		r.logger.Warn("postgres health changed", zap.Bool("healthy", postgresHealthy))
	}
	if redisHealthy != previousRedis {
		r.logger.Warn("redis health changed", zap.Bool("healthy", redisHealthy))
	}
}

// recordUpstreamResult feeds the upstream failure streak that drives the
// degraded health mode. One success recovers; repeated failures degrade.
func (r *Runtime) recordUpstreamResult(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.upstreamFailureStreak = 0
		r.upstreamHealthy = true
		return
	}

	r.upstreamFailureStreak++
	if r.upstreamFailureStreak >= upstreamFailureThreshold {
		r.upstreamHealthy = false
	}
}

// trackedFetcher wraps the upstream client so fetch outcomes update runtime
// health state.
type trackedFetcher struct {
	client  *upstream.Client
	runtime *Runtime
}

func (f *trackedFetcher) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, bool) {
	data, ok := f.client.Fetch(ctx, endpoint, params)
	f.runtime.recordUpstreamResult(ok)
	return data, ok
}
