package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sandevgo/lexibot/internal/core"
)

type Items struct {
	db *sql.DB
}

func NewItems(db *sql.DB) *Items {
	return &Items{db: db}
}

func (r *Items) Create(ctx context.Context, word, threadRef string) (core.Item, error) {
	now := time.Now().UTC()

	query := `INSERT INTO items (word, resolution, thread_ref, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, word, core.ResolutionPending, nullable(threadRef), now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Item{}, core.ErrDuplicateWord
		}
		return core.Item{}, fmt.Errorf("failed to insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to get item id: %w", err)
	}

	return core.Item{
		ID:         id,
		Word:       word,
		Resolution: core.ResolutionPending,
		ThreadRef:  threadRef,
		CreatedAt:  now,
	}, nil
}

func (r *Items) FindByThread(ctx context.Context, threadRef string) (*core.Item, error) {
	query := `SELECT id, word, resolution, thread_ref, created_at FROM items WHERE thread_ref = ?`
	return r.queryOne(ctx, query, threadRef)
}

func (r *Items) FindLatest(ctx context.Context) (*core.Item, error) {
	query := `SELECT id, word, resolution, thread_ref, created_at FROM items ORDER BY created_at DESC, id DESC LIMIT 1`
	return r.queryOne(ctx, query)
}

func (r *Items) LastResolution(ctx context.Context) (core.Resolution, bool, error) {
	item, err := r.FindLatest(ctx)
	if err != nil {
		return "", false, err
	}
	if item == nil {
		return "", false, nil
	}
	return item.Resolution, true, nil
}

// SetResolution is conditional on the row still being pending, so
// concurrent events with distinct keys cannot both apply a transition.
func (r *Items) SetResolution(ctx context.Context, id int64, res core.Resolution) error {
	query := `UPDATE items SET resolution = ? WHERE id = ? AND resolution = ?`
	result, err := r.db.ExecContext(ctx, query, res, id, core.ResolutionPending)
	if err != nil {
		return fmt.Errorf("failed to update resolution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := r.queryOne(ctx, `SELECT id, word, resolution, thread_ref, created_at FROM items WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("item %d not found", id)
		}
		return core.ErrAlreadyResolved
	}
	return nil
}

func (r *Items) List(ctx context.Context, filter core.ListFilter) ([]core.Item, error) {
	query := `SELECT id, word, resolution, thread_ref, created_at FROM items`
	var args []any

	switch filter {
	case core.FilterKnown:
		query += ` WHERE resolution = ?`
		args = append(args, core.ResolutionKnown)
	case core.FilterLearning:
		query += ` WHERE resolution = ?`
		args = append(args, core.ResolutionLearning)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Items) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

func (r *Items) queryOne(ctx context.Context, query string, args ...any) (*core.Item, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (core.Item, error) {
	var item core.Item
	var threadRef sql.NullString

	if err := row.Scan(&item.ID, &item.Word, &item.Resolution, &threadRef, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Item{}, err
		}
		return core.Item{}, fmt.Errorf("failed to scan item: %w", err)
	}
	item.ThreadRef = threadRef.String
	return item, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
