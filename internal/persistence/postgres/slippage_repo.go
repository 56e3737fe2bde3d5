package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/degenrun/degenrun/internal/persistence"
)

// slippageRepo implements persistence.SlippageRepo.
type slippageRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSlippageRepo creates a PostgreSQL slippage-impact repository.
func NewSlippageRepo(db *sqlx.DB, timeout time.Duration) persistence.SlippageRepo {
	return &slippageRepo{db: db, timeout: timeout}
}

// Insert appends one slippage-impact record.
func (r *slippageRepo) Insert(ctx context.Context, rec persistence.SlippageRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if rec.Side != "buy" && rec.Side != "sell" {
		return fmt.Errorf("invalid side %q", rec.Side)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO slippage_records (token, side, expected_out, actual_out, slippage_bps_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query,
		rec.Token, rec.Side, rec.ExpectedOut, rec.ActualOut,
		rec.SlippageBpsUsed, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert slippage record: %w", err)
	}
	return nil
}

// ListRecent returns the newest records, newest first.
func (r *slippageRepo) ListRecent(ctx context.Context, limit int) ([]persistence.SlippageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	var rows []persistence.SlippageRecord
	query := `
		SELECT id, token, side, expected_out, actual_out, slippage_bps_used, created_at
		FROM slippage_records
		ORDER BY created_at DESC
		LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select slippage records: %w", err)
	}
	return rows, nil
}
