// Package dispatch fans inbound events out to a bounded worker pool
// and owns idempotency-key derivation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/internal/service/router"
	"github.com/sandevgo/lexibot/pkg/log"
	"golang.org/x/sync/errgroup"
)

var ErrShuttingDown = errors.New("dispatcher is shutting down")

const (
	errorReplyMessage = "I encountered an error while processing your message. Please try again."
	busyReplyMessage  = "I'm a bit busy right now, please try again in a moment."
)

// Handler processes one keyed event. Implemented by the router.
type Handler interface {
	Handle(ctx context.Context, event core.InboundEvent, key string) (router.Outcome, error)
}

// Dispatcher queues inbound events and processes them on a fixed pool
// of workers. Submit never blocks the transport for longer than the
// queue has room; Shutdown drains what was already accepted.
type Dispatcher struct {
	handler  Handler
	platform core.Platform
	workers  int

	mu     sync.Mutex
	queue  chan core.InboundEvent
	closed bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

func NewDispatcher(handler Handler, platform core.Platform, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		handler:  handler,
		platform: platform,
		workers:  workers,
		queue:    make(chan core.InboundEvent, queueSize),
	}
}

// Submit enqueues an event for processing. It fails fast when the
// queue is full or the dispatcher is shutting down; the transport
// decides whether to surface that upstream.
func (d *Dispatcher) Submit(event core.InboundEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}

	select {
	case d.queue <- event:
		return nil
	default:
		return fmt.Errorf("event queue full (%d)", cap(d.queue))
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	g, workCtx := errgroup.WithContext(workCtx)
	d.group = g
	for i := 0; i < d.workers; i++ {
		worker := i
		g.Go(func() error {
			d.runWorker(workCtx, worker)
			return nil
		})
	}

	log.FromCtx(ctx).Info().Int("workers", d.workers).Msg("event dispatcher started")
	return nil
}

// Shutdown stops accepting events, lets the workers drain the queue,
// and waits until they exit or the grace context runs out.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if d.group == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Grace period expired; abort in-flight handlers.
		d.cancel()
		<-done
	}

	log.FromCtx(ctx).Info().Msg("event dispatcher stopped")
	return nil
}

func (d *Dispatcher) runWorker(ctx context.Context, worker int) {
	logger := log.FromCtx(ctx).With().Int("worker", worker).Logger()
	ctx = logger.WithContext(ctx)

	for event := range d.queue {
		key := DeriveKey(ctx, event)
		outcome, err := d.handler.Handle(ctx, event, key)
		if err != nil {
			// Long polling gives no redelivery, so a denial must tell
			// the user to retry. The key stays unmarked either way.
			if errors.Is(err, core.ErrRateLimited) {
				logger.Warn().Str("key", key).Msg("event rate limited, asking the user to retry")
				d.notify(ctx, event, busyReplyMessage)
				continue
			}
			logger.Error().Err(err).Str("key", key).Msg("event handling failed")
			d.notify(ctx, event, errorReplyMessage)
			continue
		}
		logger.Debug().Str("key", key).Str("outcome", string(outcome)).Msg("event handled")
	}
}

// notify tells the user in their thread why their message got no
// answer. The event itself stays unmarked, so a resend can be processed.
func (d *Dispatcher) notify(ctx context.Context, event core.InboundEvent, text string) {
	if d.platform == nil || event.ThreadRef == "" {
		return
	}
	if _, err := d.platform.PostToThread(ctx, event.ThreadRef, text); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("thread", event.ThreadRef).Msg("failed to post notification")
	}
}
