package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	settingCurrentTheme  = "current_theme"
	settingThemeThreadID = "theme_thread_id"
)

// Settings is the single-tenant key/value settings table holding the
// current theme and the designated theme thread.
type Settings struct {
	db *sql.DB
}

func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

func (r *Settings) Theme(ctx context.Context) (string, error) {
	return r.get(ctx, settingCurrentTheme)
}

func (r *Settings) SetTheme(ctx context.Context, theme string) error {
	return r.set(ctx, settingCurrentTheme, theme)
}

func (r *Settings) ClearTheme(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, settingCurrentTheme); err != nil {
		return fmt.Errorf("failed to clear theme: %w", err)
	}
	return nil
}

func (r *Settings) ThemeThread(ctx context.Context) (string, error) {
	return r.get(ctx, settingThemeThreadID)
}

func (r *Settings) SetThemeThread(ctx context.Context, threadRef string) error {
	return r.set(ctx, settingThemeThreadID, threadRef)
}

func (r *Settings) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (r *Settings) set(ctx context.Context, key, value string) error {
	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}
