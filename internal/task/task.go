package task

import (
	"errors"
	"time"
)

// Kind identifies what a monitoring task tracks.
type Kind string

const (
	// KindInfluencer tracks an influencer account by username.
	KindInfluencer Kind = "influencer"
	// KindPost tracks a single post by post code.
	KindPost Kind = "post"
)

// Status is the task lifecycle state.
type Status string

const (
	// StatusActive tasks are selected by the scheduler.
	StatusActive Status = "active"
	// StatusPaused tasks stay registered but are not fetched.
	StatusPaused Status = "paused"
	// StatusStopped is terminal; there is no transition out.
	StatusStopped Status = "stopped"
)

var (
	// ErrTaskNotFound indicates no task exists for the given id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateSubject indicates a task already tracks the subject.
	ErrDuplicateSubject = errors.New("subject is already tracked")
	// ErrInvalidInterval indicates an unknown interval label.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidPostURL indicates a post URL without a recognizable post code.
	ErrInvalidPostURL = errors.New("invalid instagram post url")
)

// intervalSeconds maps interval labels to polling cadence in seconds.
// The set is fixed; the scheduler runs one tick loop per entry.
var intervalSeconds = map[string]int{
	"30s": 30,
	"30m": 30 * 60,
	"1h":  60 * 60,
	"1d":  24 * 60 * 60,
	"7d":  7 * 24 * 60 * 60,
}

// IntervalSeconds resolves an interval label to seconds.
func IntervalSeconds(label string) (int, error) {
	seconds, ok := intervalSeconds[label]
	if !ok {
		return 0, ErrInvalidInterval
	}
	return seconds, nil
}

// IntervalBuckets returns all configured polling intervals in seconds.
func IntervalBuckets() []int {
	return []int{30, 1800, 3600, 86400, 604800}
}

// Task is one registered monitoring subscription.
type Task struct {
	ID              string
	Kind            Kind
	Username        string
	PostCode        string
	IntervalSeconds int
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subject returns the tracked identity for the task's kind.
func (t *Task) Subject() string {
	if t.Kind == KindPost {
		return t.PostCode
	}
	return t.Username
}

// Interval returns the polling cadence as a duration.
func (t *Task) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// InfluencerSnapshot is one recorded set of influencer metrics.
type InfluencerSnapshot struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	UserID         int64     `json:"user_id"`
	Bio            string    `json:"bio"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	PostCount      int64     `json:"post_count"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// PostSnapshot is one recorded set of post engagement metrics.
type PostSnapshot struct {
	ID           int64     `json:"id"`
	PostCode     string    `json:"post_code"`
	PostID       string    `json:"post_id"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	PlayCount    int64     `json:"play_count"`
	RecordedAt   time.Time `json:"recorded_at"`
}
