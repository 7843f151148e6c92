// Package api exposes the monitor HTTP surface: task management and history
// retrieval endpoints for influencer and post tracking.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/task"
)

// TaskService is the registry surface the API needs.
type TaskService interface {
	Register(ctx context.Context, kind task.Kind, subject, intervalLabel string) (*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, kind task.Kind) ([]*task.Task, error)
	Stop(ctx context.Context, ids []string) ([]string, error)
	Pause(ctx context.Context, id string) (*task.Task, error)
	Resume(ctx context.Context, id string) (*task.Task, error)
}

// HistoryReader serves cached subject history.
type HistoryReader interface {
	GetUserHistory(ctx context.Context, username string) ([]task.InfluencerSnapshot, error)
	GetPostHistory(ctx context.Context, postCode string) ([]task.PostSnapshot, error)
}

// Handlers holds the API dependencies.
type Handlers struct {
	tasks   TaskService
	history HistoryReader
	logger  *zap.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(tasks TaskService, history HistoryReader, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{tasks: tasks, history: history, logger: logger}
}

// Routes returns the service router. Monitor endpoints live under
// /api/v1/instagram; the root and health endpoints answer with their fixed
// payloads at the top level.
func (h *Handlers) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Hello, World!"})
	})
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	router.Route("/api/v1/instagram", func(r chi.Router) {
		r.Route("/influencer_monitor", func(r chi.Router) {
			r.Post("/create_monitor_task", h.createInfluencerTask)
			r.Get("/user_history/{username}", h.getUserHistory)
			r.Get("/tasks", h.listInfluencerTasks)
			r.Post("/stop_tasks", h.stopTasks)
			r.Get("/task_status/{taskID}", h.getTaskStatus)
			r.Post("/pause_task/{taskID}", h.pauseTask)
			r.Post("/resume_task/{taskID}", h.resumeTask)
		})
		r.Route("/post_monitor", func(r chi.Router) {
			r.Post("/create_monitor_task", h.createPostTask)
			r.Get("/video_history/{postCode}", h.getVideoHistory)
			r.Get("/tasks", h.listPostTasks)
			r.Post("/stop_tasks", h.stopTasks)
			r.Get("/task_status/{taskID}", h.getTaskStatus)
			r.Post("/pause_task/{taskID}", h.pauseTask)
			r.Post("/resume_task/{taskID}", h.resumeTask)
		})
	})

	return router
}

// stopTasks stops one or more monitoring tasks. The returned id set contains
// only the tasks that actually existed.
func (h *Handlers) stopTasks(w http.ResponseWriter, r *http.Request) {
	var req stopTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stopped, err := h.tasks.Stop(r.Context(), req.TaskIDs)
	if err != nil {
		h.logger.Error("stop tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to stop tasks")
		return
	}
	if stopped == nil {
		stopped = []string{}
	}
	writeData(w, http.StatusOK, stopTasksData{DeletedTaskIDs: stopped})
}

func (h *Handlers) getTaskStatus(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondTaskError(w, err, "get task status")
		return
	}
	writeData(w, http.StatusOK, taskStatusData{Status: t.Status})
}

func (h *Handlers) pauseTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Pause(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondTaskError(w, err, "pause task")
		return
	}
	writeData(w, http.StatusOK, taskUpdateData{TaskID: t.ID, Status: t.Status})
}

func (h *Handlers) resumeTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Resume(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondTaskError(w, err, "resume task")
		return
	}
	writeData(w, http.StatusOK, taskUpdateData{TaskID: t.ID, Status: t.Status})
}

func (h *Handlers) respondTaskError(w http.ResponseWriter, err error, operation string) {
	if errors.Is(err, task.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	h.logger.Error(operation+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
