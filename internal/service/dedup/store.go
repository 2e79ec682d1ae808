package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
)

// Store decides whether an inbound event has been handled before. The
// in-memory cache answers repeats within a short window without I/O;
// the processed_events table is authoritative and the only place where
// two racing workers are serialized (insert-unique, single winner).
type Store struct {
	cache  *TTLCache
	events core.EventRepository
}

func NewStore(cache *TTLCache, events core.EventRepository) *Store {
	return &Store{cache: cache, events: events}
}

func (s *Store) IsDuplicate(ctx context.Context, key string) (bool, error) {
	if s.cache.Contains(key) {
		return true, nil
	}

	exists, err := s.events.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		// Backfill so the next repeat skips the store round-trip.
		s.cache.Add(key)
	}
	return exists, nil
}

// MarkProcessed claims the key. Returns core.ErrAlreadyProcessed when
// another worker (or an earlier delivery) already claimed it; callers
// treat that as "already handled", not as a failure.
func (s *Store) MarkProcessed(ctx context.Context, key, eventType string) error {
	err := s.events.Insert(ctx, key, eventType, time.Now())
	if errors.Is(err, core.ErrAlreadyProcessed) {
		s.cache.Add(key)
		return core.ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}

	s.cache.Add(key)
	return nil
}

// Unmark releases a claimed key after the action behind it failed, so
// a legitimate redelivery can be processed. The upstream ack and the
// durable processed-marking are intentionally decoupled.
func (s *Store) Unmark(ctx context.Context, key string) error {
	s.cache.Remove(key)
	if err := s.events.Delete(ctx, key); err != nil {
		return fmt.Errorf("dedup unmark: %w", err)
	}
	return nil
}

// Sweep purges durable records older than the retention window and
// drops expired cache entries.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	purged, err := s.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("dedup sweep: %w", err)
	}

	s.cache.EvictExpired()

	if purged > 0 {
		log.FromCtx(ctx).Debug().Int64("purged", purged).Msg("purged processed events")
	}
	return nil
}
