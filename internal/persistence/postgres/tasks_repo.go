// Package postgres implements the task and slippage repositories on
// PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/persistence"
)

// tasksRepo implements persistence.TaskRepo.
type tasksRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTasksRepo creates a PostgreSQL task repository.
func NewTasksRepo(db *sqlx.DB, timeout time.Duration) persistence.TaskRepo {
	return &tasksRepo{db: db, timeout: timeout}
}

type taskRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Tags      pq.StringArray `db:"tags"`
	Metadata  []byte         `db:"metadata"`
	Schedule  sql.NullString `db:"schedule"`
	CreatedAt time.Time      `db:"created_at"`
}

// CreateTask inserts a new task record. Duplicate IDs are rejected so a task
// cannot be enqueued twice.
func (r *tasksRepo) CreateTask(ctx context.Context, task domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metadata := task.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	query := `
		INSERT INTO tasks (id, name, tags, metadata, schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.Name, pq.StringArray(task.Tags), []byte(metadata),
		nullString(task.Schedule), task.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate task %s: %w", task.ID, err)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTasks returns tasks matching the filter, oldest first.
func (r *tasksRepo) GetTasks(ctx context.Context, filter persistence.TaskFilter) ([]domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var conditions []string
	var args []interface{}

	if filter.Name != "" {
		args = append(args, filter.Name)
		conditions = append(conditions, fmt.Sprintf("name = $%d", len(args)))
	}
	if len(filter.Tags) > 0 {
		args = append(args, pq.StringArray(filter.Tags))
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", len(args)))
	}

	query := `SELECT id, name, tags, metadata, schedule, created_at FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, domain.Task{
			ID:        row.ID,
			Name:      row.Name,
			Tags:      row.Tags,
			Metadata:  json.RawMessage(row.Metadata),
			Schedule:  row.Schedule.String,
			CreatedAt: row.CreatedAt,
		})
	}
	return tasks, nil
}

// DeleteTask removes a task after terminal completion.
func (r *tasksRepo) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
