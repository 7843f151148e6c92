package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/instatrack/instatrack/internal/task"
)

type createPostTaskRequest struct {
	PostURL  string `json:"post_url"`
	Interval string `json:"interval"`
}

// createPostTask starts tracking a given post. The post URL is reduced to
// its shortcode before registration.
func (h *Handlers) createPostTask(w http.ResponseWriter, r *http.Request) {
	var req createPostTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	postCode, err := ExtractPostCode(req.PostURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Instagram post URL")
		return
	}

	t, err := h.tasks.Register(r.Context(), task.KindPost, postCode, req.Interval)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidInterval):
			writeError(w, http.StatusBadRequest, "invalid monitoring interval")
		case errors.Is(err, task.ErrDuplicateSubject):
			writeError(w, http.StatusConflict, "Task with this post code already exists")
		default:
			h.logger.Error("create post task failed", zap.String("post_code", postCode), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create task")
		}
		return
	}

	writeData(w, http.StatusCreated, createPostTaskData{
		TaskID:          t.ID,
		PostCode:        t.PostCode,
		Status:          t.Status,
		IntervalSeconds: t.IntervalSeconds,
	})
}

// getVideoHistory retrieves historical engagement metrics for a post.
func (h *Handlers) getVideoHistory(w http.ResponseWriter, r *http.Request) {
	postCode := chi.URLParam(r, "postCode")
	history, err := h.history.GetPostHistory(r.Context(), postCode)
	if err != nil {
		h.logger.Error("get video history failed", zap.String("post_code", postCode), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeData(w, http.StatusOK, videoHistoryData{
		PostCode: postCode,
		History:  postHistoryViews(history),
	})
}

func (h *Handlers) listPostTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context(), task.KindPost)
	if err != nil {
		h.logger.Error("list post tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeData(w, http.StatusOK, postTaskViews(tasks))
}
