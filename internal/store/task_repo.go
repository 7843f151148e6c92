package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/instatrack/instatrack/internal/task"
)

const taskColumns = `id, task_type, username, post_code, interval_seconds, status, created_at, updated_at`

// TaskRepo persists the task registry.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo creates a task repository.
func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Create inserts a new task row.
func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO task (id, task_type, username, post_code, interval_seconds, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		t.ID, t.Kind, nullString(t.Username), nullString(t.PostCode),
		t.IntervalSeconds, t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetByID returns the task with the given id, or nil when absent.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM task WHERE id = $1`, id)
	return scanTask(row)
}

// GetBySubject returns the task tracking the given subject for a kind,
// or nil when absent. Stopped and paused tasks still count: at most one
// task may ever exist per (kind, subject).
func (r *TaskRepo) GetBySubject(ctx context.Context, kind task.Kind, subject string) (*task.Task, error) {
	column := "username"
	if kind == task.KindPost {
		column = "post_code"
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM task WHERE task_type = $1 AND `+column+` = $2`,
		kind, subject)
	return scanTask(row)
}

// ListByKind returns all tasks of one kind. No ordering is guaranteed.
func (r *TaskRepo) ListByKind(ctx context.Context, kind task.Kind) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM task WHERE task_type = $1`, kind)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListDue returns all active tasks whose interval matches the given bucket.
func (r *TaskRepo) ListDue(ctx context.Context, intervalSeconds int) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM task
		 WHERE status = $1 AND interval_seconds = $2`,
		task.StatusActive, intervalSeconds)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// StopAll transitions the given tasks to stopped and returns the ids that
// matched a row. Unknown ids are silently dropped.
func (r *TaskRepo) StopAll(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`UPDATE task SET status = $1, updated_at = now()
		 WHERE id = ANY($2)
		 RETURNING id`,
		task.StatusStopped, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("stop tasks: %w", err)
	}
	defer rows.Close()

	var stopped []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stopped task id: %w", err)
		}
		stopped = append(stopped, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stopped task ids: %w", err)
	}
	return stopped, nil
}

// UpdateStatus sets a task's status and bumps updated_at. Returns the
// updated row, or nil when the id is unknown.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id string, status task.Status) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE task SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+taskColumns,
		id, status)
	return scanTask(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	t := &task.Task{}
	var username, postCode sql.NullString

	err := row.Scan(&t.ID, &t.Kind, &username, &postCode,
		&t.IntervalSeconds, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Username = username.String
	t.PostCode = postCode.String
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t := &task.Task{}
		var username, postCode sql.NullString
		if err := rows.Scan(&t.ID, &t.Kind, &username, &postCode,
			&t.IntervalSeconds, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Username = username.String
		t.PostCode = postCode.String
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
