package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/instatrack/instatrack/internal/task"
)

// InfluencerHistoryRepo persists influencer metric snapshots. Rows are
// append-only; recorded_at is assigned by the database at insert time.
type InfluencerHistoryRepo struct {
	db *sql.DB
}

// NewInfluencerHistoryRepo creates an influencer history repository.
func NewInfluencerHistoryRepo(db *sql.DB) *InfluencerHistoryRepo {
	return &InfluencerHistoryRepo{db: db}
}

// Append inserts one snapshot row and fills in its generated fields.
func (r *InfluencerHistoryRepo) Append(ctx context.Context, s *task.InfluencerSnapshot) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO influencer_metrics_history
		     (user_id, username, bio, follower_count, following_count, post_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, recorded_at`,
		s.UserID, s.Username, s.Bio, s.FollowerCount, s.FollowingCount, s.PostCount,
	).Scan(&s.ID, &s.RecordedAt)
	if err != nil {
		return fmt.Errorf("append influencer snapshot: %w", err)
	}
	return nil
}

// ListByUsername returns all snapshots for a username, newest first.
func (r *InfluencerHistoryRepo) ListByUsername(ctx context.Context, username string) ([]task.InfluencerSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, username, bio, follower_count, following_count, post_count, recorded_at
		 FROM influencer_metrics_history
		 WHERE username = $1
		 ORDER BY recorded_at DESC`,
		username)
	if err != nil {
		return nil, fmt.Errorf("list influencer history: %w", err)
	}
	defer rows.Close()

	var history []task.InfluencerSnapshot
	for rows.Next() {
		var s task.InfluencerSnapshot
		var bio sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &bio,
			&s.FollowerCount, &s.FollowingCount, &s.PostCount, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan influencer snapshot: %w", err)
		}
		s.Bio = bio.String
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate influencer history: %w", err)
	}
	return history, nil
}

// PostHistoryRepo persists post metric snapshots, append-only.
type PostHistoryRepo struct {
	db *sql.DB
}

// NewPostHistoryRepo creates a post history repository.
func NewPostHistoryRepo(db *sql.DB) *PostHistoryRepo {
	return &PostHistoryRepo{db: db}
}

// Append inserts one snapshot row and fills in its generated fields.
func (r *PostHistoryRepo) Append(ctx context.Context, s *task.PostSnapshot) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO post_metrics_history
		     (post_code, post_id, like_count, comment_count, play_count)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, recorded_at`,
		s.PostCode, s.PostID, s.LikeCount, s.CommentCount, s.PlayCount,
	).Scan(&s.ID, &s.RecordedAt)
	if err != nil {
		return fmt.Errorf("append post snapshot: %w", err)
	}
	return nil
}

// ListByPostCode returns all snapshots for a post code, newest first.
func (r *PostHistoryRepo) ListByPostCode(ctx context.Context, postCode string) ([]task.PostSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_code, post_id, like_count, comment_count, play_count, recorded_at
		 FROM post_metrics_history
		 WHERE post_code = $1
		 ORDER BY recorded_at DESC`,
		postCode)
	if err != nil {
		return nil, fmt.Errorf("list post history: %w", err)
	}
	defer rows.Close()

	var history []task.PostSnapshot
	for rows.Next() {
		var s task.PostSnapshot
		if err := rows.Scan(&s.ID, &s.PostCode, &s.PostID,
			&s.LikeCount, &s.CommentCount, &s.PlayCount, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan post snapshot: %w", err)
		}
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post history: %w", err)
	}
	return history, nil
}
