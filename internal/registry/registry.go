// Package registry implements task registration and the task lifecycle
// state machine.
package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/task"
)

// TaskStore is the persistence surface the registry needs.
type TaskStore interface {
	Create(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id string) (*task.Task, error)
	GetBySubject(ctx context.Context, kind task.Kind, subject string) (*task.Task, error)
	ListByKind(ctx context.Context, kind task.Kind) ([]*task.Task, error)
	StopAll(ctx context.Context, ids []string) ([]string, error)
	UpdateStatus(ctx context.Context, id string, status task.Status) (*task.Task, error)
}

// PauseMarker maintains the cache-side paused markers that let in-flight
// jobs short-circuit before the persisted status is re-read.
type PauseMarker interface {
	MarkPaused(ctx context.Context, taskID string) error
	ClearPaused(ctx context.Context, taskID string) error
}

// Registry provides task CRUD and lifecycle transitions.
type Registry struct {
	tasks  TaskStore
	marker PauseMarker
	logger *zap.Logger
}

// New creates a registry.
func New(tasks TaskStore, marker PauseMarker, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{tasks: tasks, marker: marker, logger: logger}
}

// Register creates an active monitoring task for a subject. The interval is
// resolved from its label; a task already tracking the subject, in any
// status, makes the registration fail with ErrDuplicateSubject.
func (r *Registry) Register(ctx context.Context, kind task.Kind, subject, intervalLabel string) (*task.Task, error) {
	seconds, err := task.IntervalSeconds(intervalLabel)
	if err != nil {
		return nil, err
	}

	existing, err := r.tasks.GetBySubject(ctx, kind, subject)
	if err != nil {
		return nil, fmt.Errorf("check existing task: %w", err)
	}
	if existing != nil {
		return nil, task.ErrDuplicateSubject
	}

	newTask := &task.Task{
		ID:              uuid.NewString(),
		Kind:            kind,
		IntervalSeconds: seconds,
		Status:          task.StatusActive,
	}
	if kind == task.KindPost {
		newTask.PostCode = subject
	} else {
		newTask.Username = subject
	}

	if err := r.tasks.Create(ctx, newTask); err != nil {
		return nil, fmt.Errorf("register task: %w", err)
	}

	r.logger.Info("monitor task registered",
		zap.String("task_id", newTask.ID),
		zap.String("kind", string(kind)),
		zap.String("subject", subject),
		zap.Int("interval_seconds", seconds),
	)
	return newTask, nil
}

// Get returns a task by id.
func (r *Registry) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := r.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, task.ErrTaskNotFound
	}
	return t, nil
}

// List returns all tasks of one kind.
func (r *Registry) List(ctx context.Context, kind task.Kind) ([]*task.Task, error) {
	return r.tasks.ListByKind(ctx, kind)
}

// Stop transitions the given tasks to stopped, best effort. The returned id
// set is authoritative: ids that matched no row are absent from it.
func (r *Registry) Stop(ctx context.Context, ids []string) ([]string, error) {
	stopped, err := r.tasks.StopAll(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("stop tasks: %w", err)
	}
	r.logger.Info("monitor tasks stopped", zap.Int("requested", len(ids)), zap.Int("stopped", len(stopped)))
	return stopped, nil
}

// Pause transitions a task from active to paused.
func (r *Registry) Pause(ctx context.Context, id string) (*task.Task, error) {
	return r.setStatus(ctx, id, task.StatusPaused)
}

// Resume transitions a task from paused back to active.
func (r *Registry) Resume(ctx context.Context, id string) (*task.Task, error) {
	return r.setStatus(ctx, id, task.StatusActive)
}

// setStatus applies an active<->paused transition. Stopped is terminal:
// transitions on a stopped task return it unchanged. Redundant transitions
// (pausing a paused task, resuming an active one) are no-ops.
func (r *Registry) setStatus(ctx context.Context, id string, status task.Status) (*task.Task, error) {
	current, err := r.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if current == nil {
		return nil, task.ErrTaskNotFound
	}
	if current.Status == task.StatusStopped || current.Status == status {
		return current, nil
	}

	// The marker is written before the row update so an in-flight job
	// observes the pause as early as possible.
	if r.marker != nil {
		switch status {
		case task.StatusPaused:
			if markErr := r.marker.MarkPaused(ctx, id); markErr != nil {
				r.logger.Warn("failed to write paused marker", zap.String("task_id", id), zap.Error(markErr))
			}
		case task.StatusActive:
			if markErr := r.marker.ClearPaused(ctx, id); markErr != nil {
				r.logger.Warn("failed to clear paused marker", zap.String("task_id", id), zap.Error(markErr))
			}
		}
	}

	updated, err := r.tasks.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if updated == nil {
		return nil, task.ErrTaskNotFound
	}

	r.logger.Info("task status updated",
		zap.String("task_id", id),
		zap.String("status", string(status)),
	)
	return updated, nil
}
