// Package persistence defines the minimal storage surface the agent needs:
// task records, a durable key/value store, and slippage-impact history.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/degenrun/degenrun/internal/domain"
)

// ErrNotFound marks a missing key or record.
var ErrNotFound = errors.New("not found")

// TaskFilter selects tasks by tags and/or name. Zero value matches all.
type TaskFilter struct {
	Tags []string
	Name string
}

// TaskRepo stores pending task records. Tasks are deleted after terminal
// completion (success or permanently failed).
type TaskRepo interface {
	CreateTask(ctx context.Context, task domain.Task) error
	GetTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// KVStore is the durable scalar store (high-water mark, cursors).
type KVStore interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// SlippageRecord captures realized vs expected output for one trade, used to
// tune the dynamic slippage formula.
type SlippageRecord struct {
	ID              int64     `db:"id" json:"id"`
	Token           string    `db:"token" json:"token"`
	Side            string    `db:"side" json:"side"` // buy | sell
	ExpectedOut     float64   `db:"expected_out" json:"expected_out"`
	ActualOut       float64   `db:"actual_out" json:"actual_out"`
	SlippageBpsUsed int       `db:"slippage_bps_used" json:"slippage_bps_used"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SlippageRepo stores slippage-impact records.
type SlippageRepo interface {
	Insert(ctx context.Context, rec SlippageRecord) error
	ListRecent(ctx context.Context, limit int) ([]SlippageRecord, error)
}
