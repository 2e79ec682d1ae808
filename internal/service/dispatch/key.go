package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
)

// DeriveKey builds the idempotency key for an inbound event from the
// first available identity signal. When the event carries none, a
// random key is generated; such events cannot be deduplicated across
// redeliveries, which is logged loudly.
func DeriveKey(ctx context.Context, event core.InboundEvent) string {
	if event.EventID != "" {
		return event.EventID
	}
	if event.ClientMessageID != "" {
		return "msg:" + event.ClientMessageID
	}
	if !event.Timestamp.IsZero() && event.UserID != "" {
		return fmt.Sprintf("ts:%d:user:%s", event.Timestamp.UnixNano(), event.UserID)
	}
	if !event.Timestamp.IsZero() && event.Type != "" {
		return fmt.Sprintf("ts:%d:type:%s", event.Timestamp.UnixNano(), event.Type)
	}

	key := "rand:" + uuid.NewString()
	log.FromCtx(ctx).Warn().
		Str("thread", event.ThreadRef).
		Str("key", key).
		Msg("event carries no identity, deduplication disabled for it")
	return key
}
