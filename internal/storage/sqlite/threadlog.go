package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/lexibot/internal/core"
)

// ThreadLog records every message the bot sends and receives per
// thread. The Telegram Bot API cannot read a chat's history back, so
// this log is what backs Platform.GetThreadMessages.
type ThreadLog struct {
	db *sql.DB
}

func NewThreadLog(db *sql.DB) *ThreadLog {
	return &ThreadLog{db: db}
}

func (r *ThreadLog) Record(ctx context.Context, threadRef string, sender core.SenderKind, text string, at time.Time) error {
	query := `INSERT INTO thread_messages (thread_ref, sender, text, sent_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, threadRef, sender, text, at.UTC()); err != nil {
		return fmt.Errorf("failed to record thread message: %w", err)
	}
	return nil
}

func (r *ThreadLog) Messages(ctx context.Context, threadRef string) ([]core.ThreadMessage, error) {
	query := `SELECT sender, text, sent_at FROM thread_messages WHERE thread_ref = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, threadRef)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer rows.Close()

	var messages []core.ThreadMessage
	for rows.Next() {
		var msg core.ThreadMessage
		if err := rows.Scan(&msg.Sender, &msg.Text, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
