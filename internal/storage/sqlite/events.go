package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/lexibot/internal/core"
)

// Events is the durable side of event deduplication. Insert relies on
// the primary key so that two workers racing on one key get exactly one
// winner.
type Events struct {
	db *sql.DB
}

func NewEvents(db *sql.DB) *Events {
	return &Events{db: db}
}

func (r *Events) Insert(ctx context.Context, key, eventType string, at time.Time) error {
	query := `INSERT INTO processed_events (event_key, event_type, processed_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, key, eventType, at.UTC()); err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to insert processed event: %w", err)
	}
	return nil
}

func (r *Events) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	query := `SELECT 1 FROM processed_events WHERE event_key = ?`
	err := r.db.QueryRowContext(ctx, query, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed event: %w", err)
	}
	return true, nil
}

func (r *Events) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE event_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete processed event: %w", err)
	}
	return nil
}

func (r *Events) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE processed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return res.RowsAffected()
}
