package core

import (
	"context"
	"time"
)

// ListFilter selects items by resolution in ItemRepository.List.
type ListFilter string

const (
	FilterAll      ListFilter = "all"
	FilterKnown    ListFilter = "known"
	FilterLearning ListFilter = "learning"
)

type ItemRepository interface {
	// Create inserts a new pending item bound to threadRef.
	// Returns ErrDuplicateWord if the word exists (case-insensitive).
	Create(ctx context.Context, word, threadRef string) (Item, error)
	FindByThread(ctx context.Context, threadRef string) (*Item, error)
	FindLatest(ctx context.Context) (*Item, error)
	// LastResolution reports the resolution of the newest item.
	// ok is false when no items exist.
	LastResolution(ctx context.Context) (res Resolution, ok bool, err error)
	// SetResolution transitions an item's resolution away from pending.
	// Returns ErrAlreadyResolved once the item has left pending, so two
	// racing callers cannot both apply the transition.
	SetResolution(ctx context.Context, id int64, res Resolution) error
	List(ctx context.Context, filter ListFilter) ([]Item, error)
	DeleteAll(ctx context.Context) error
}

type SettingsRepository interface {
	// Theme returns the current theme, "" when unset.
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error
	ClearTheme(ctx context.Context) error
	// ThemeThread returns the designated theme thread ref, "" when unset.
	ThemeThread(ctx context.Context) (string, error)
	SetThemeThread(ctx context.Context, threadRef string) error
}

type EventRepository interface {
	// Insert is a set-add: a conflicting key returns ErrAlreadyProcessed.
	Insert(ctx context.Context, key, eventType string, at time.Time) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ThreadLogRepository interface {
	Record(ctx context.Context, threadRef string, sender SenderKind, text string, at time.Time) error
	Messages(ctx context.Context, threadRef string) ([]ThreadMessage, error)
}
