package api

import (
	"time"

	"github.com/instatrack/instatrack/internal/task"
)

type createInfluencerTaskData struct {
	TaskID          string      `json:"task_id"`
	Username        string      `json:"username"`
	Status          task.Status `json:"status"`
	IntervalSeconds int         `json:"interval_seconds"`
}

type createPostTaskData struct {
	TaskID          string      `json:"task_id"`
	PostCode        string      `json:"post_code"`
	Status          task.Status `json:"status"`
	IntervalSeconds int         `json:"interval_seconds"`
}

type influencerTaskData struct {
	TaskID          string      `json:"task_id"`
	Username        string      `json:"username"`
	Status          task.Status `json:"status"`
	IntervalSeconds int         `json:"interval_seconds"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type postTaskData struct {
	TaskID          string      `json:"task_id"`
	PostCode        string      `json:"post_code"`
	Status          task.Status `json:"status"`
	IntervalSeconds int         `json:"interval_seconds"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type influencerHistoryData struct {
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	PostCount      int64     `json:"post_count"`
	Bio            string    `json:"bio"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type userHistoryData struct {
	Username string                  `json:"username"`
	History  []influencerHistoryData `json:"history"`
}

type postHistoryData struct {
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	PlayCount    int64     `json:"play_count"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type videoHistoryData struct {
	PostCode string            `json:"post_code"`
	History  []postHistoryData `json:"history"`
}

type stopTasksRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type stopTasksData struct {
	DeletedTaskIDs []string `json:"deleted_task_ids"`
}

type taskStatusData struct {
	Status task.Status `json:"status"`
}

type taskUpdateData struct {
	TaskID string      `json:"task_id"`
	Status task.Status `json:"status"`
}

func influencerTaskViews(tasks []*task.Task) []influencerTaskData {
	views := make([]influencerTaskData, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, influencerTaskData{
			TaskID:          t.ID,
			Username:        t.Username,
			Status:          t.Status,
			IntervalSeconds: t.IntervalSeconds,
			CreatedAt:       t.CreatedAt,
			UpdatedAt:       t.UpdatedAt,
		})
	}
	return views
}

func postTaskViews(tasks []*task.Task) []postTaskData {
	views := make([]postTaskData, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, postTaskData{
			TaskID:          t.ID,
			PostCode:        t.PostCode,
			Status:          t.Status,
			IntervalSeconds: t.IntervalSeconds,
			CreatedAt:       t.CreatedAt,
			UpdatedAt:       t.UpdatedAt,
		})
	}
	return views
}

func influencerHistoryViews(history []task.InfluencerSnapshot) []influencerHistoryData {
	views := make([]influencerHistoryData, 0, len(history))
	for _, h := range history {
		views = append(views, influencerHistoryData{
			FollowerCount:  h.FollowerCount,
			FollowingCount: h.FollowingCount,
			PostCount:      h.PostCount,
			Bio:            h.Bio,
			RecordedAt:     h.RecordedAt,
		})
	}
	return views
}

func postHistoryViews(history []task.PostSnapshot) []postHistoryData {
	views := make([]postHistoryData, 0, len(history))
	for _, h := range history {
		views = append(views, postHistoryData{
			LikeCount:    h.LikeCount,
			CommentCount: h.CommentCount,
			PlayCount:    h.PlayCount,
			RecordedAt:   h.RecordedAt,
		})
	}
	return views
}
