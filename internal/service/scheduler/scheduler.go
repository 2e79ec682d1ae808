// Package scheduler owns the time-driven triggers: the daily word post
// and the periodic dedup cleanup sweep.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
)

// PostRunner triggers the new-word workflow.
type PostRunner interface {
	Run(ctx context.Context) (core.Item, error)
}

// Sweeper purges stale dedup records.
type Sweeper interface {
	Sweep(ctx context.Context, retention time.Duration) error
}

type Scheduler struct {
	poster PostRunner
	items  core.ItemRepository
	sweep  Sweeper
	cfg    *config.SchedulerConfig

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(poster PostRunner, items core.ItemRepository, sweep Sweeper, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		poster: poster,
		items:  items,
		sweep:  sweep,
		cfg:    cfg,
		stop:   make(chan struct{}),
	}
}

// Start launches the daily and cleanup loops. When no word exists yet
// it posts the first one immediately instead of waiting for the next
// scheduled tick.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	latest, err := s.items.FindLatest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		logger.Info().Msg("no word history, posting the first word now")
		s.runPost(ctx)
	}

	s.wg.Add(2)
	go s.dailyLoop(ctx)
	go s.cleanupLoop(ctx)

	logger.Info().
		Str("cron", s.cfg.DailyCron()).
		Str("timezone", s.cfg.Timezone).
		Dur("cleanup_interval", s.cfg.CleanupInterval).
		Msg("scheduler started")
	return nil
}

func (s *Scheduler) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	select {
	case <-done:
		log.FromCtx(ctx).Info().Msg("scheduler stopped")
		return nil
	case <-time.After(grace):
		return errors.New("scheduler shutdown grace period expired")
	}
}

func (s *Scheduler) dailyLoop(ctx context.Context) {
	defer s.wg.Done()
	logger := log.FromCtx(ctx)

	cron := s.cfg.DailyCron()
	loc := s.cfg.Location()

	for {
		next, err := gronx.NextTickAfter(cron, time.Now().In(loc), false)
		if err != nil {
			logger.Error().Err(err).Str("cron", cron).Msg("invalid daily schedule, daily loop disabled")
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		logger.Info().Msg("daily word tick")
		s.runPost(ctx)
	}
}

func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	logger := log.FromCtx(ctx)

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep.Sweep(ctx, s.cfg.EventRetention); err != nil {
				logger.Error().Err(err).Msg("dedup cleanup sweep failed")
			}
		}
	}
}

// runPost invokes the workflow and absorbs the expected refusals; the
// next tick retries naturally.
func (s *Scheduler) runPost(ctx context.Context) {
	logger := log.FromCtx(ctx)

	if _, err := s.poster.Run(ctx); err != nil {
		if errors.Is(err, core.ErrAwaitingResponse) {
			logger.Info().Msg("last word still unanswered, skipping scheduled post")
			return
		}
		logger.Error().Err(err).Msg("scheduled word post failed")
	}
}
