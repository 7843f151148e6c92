package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/task"
)

type createInfluencerTaskRequest struct {
	Username string `json:"username"`
	Interval string `json:"interval"`
}

// createInfluencerTask starts tracking a given influencer account.
func (h *Handlers) createInfluencerTask(w http.ResponseWriter, r *http.Request) {
	var req createInfluencerTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	t, err := h.tasks.Register(r.Context(), task.KindInfluencer, req.Username, req.Interval)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidInterval):
			writeError(w, http.StatusBadRequest, "invalid monitoring interval")
		case errors.Is(err, task.ErrDuplicateSubject):
			writeError(w, http.StatusConflict, "Task with this username already exists")
		default:
			h.logger.Error("create influencer task failed", zap.String("username", req.Username), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create task")
		}
		return
	}

	writeData(w, http.StatusCreated, createInfluencerTaskData{
		TaskID:          t.ID,
		Username:        t.Username,
		Status:          t.Status,
		IntervalSeconds: t.IntervalSeconds,
	})
}

// getUserHistory retrieves historical account metrics for an influencer.
func (h *Handlers) getUserHistory(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	history, err := h.history.GetUserHistory(r.Context(), username)
	if err != nil {
		h.logger.Error("get user history failed", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeData(w, http.StatusOK, userHistoryData{
		Username: username,
		History:  influencerHistoryViews(history),
	})
}

func (h *Handlers) listInfluencerTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context(), task.KindInfluencer)
	if err != nil {
		h.logger.Error("list influencer tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeData(w, http.StatusOK, influencerTaskViews(tasks))
}
