// Package router classifies inbound thread messages and drives the
// known/learning/theme/new-word transitions.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
)

// Outcome reports how an inbound event was handled.
type Outcome string

const (
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeKnown         Outcome = "known"
	OutcomeLearning      Outcome = "learning"
	OutcomeTutored       Outcome = "tutored"
	OutcomeNewWord       Outcome = "new_word"
	OutcomeRedirected    Outcome = "redirected"
	OutcomeThemeSet      Outcome = "theme_set"
	OutcomeThemeCleared  Outcome = "theme_cleared"
	OutcomeThemeRejected Outcome = "theme_rejected"
)

const (
	ackKnownMessage      = "Great! You already knew that word. I'll post a new word for you shortly."
	ackNewWordMessage    = "I'll post a new word for you shortly!"
	themeTooLongMessage  = "That theme is too long. Please keep it under 100 characters."
	themeClearedMessage  = "Theme cleared. New words will no longer follow a theme."
	themeSetMessageFmt   = "Theme set to %q. New words will follow this theme."
	redirectMessageFmt   = "There's already a new word waiting for you! Please respond to '%s' in its thread before requesting another word."
)

// Phrases in the theme thread that reset to no-theme. Compared
// case-insensitively after trimming.
var clearThemePhrases = map[string]bool{
	"clear":        true,
	"none":         true,
	"reset":        true,
	"no theme":     true,
	"clear theme":  true,
	"remove theme": true,
	"reset theme":  true,
}

// DedupStore is the idempotency guard consulted before any state
// change.
type DedupStore interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key, eventType string) error
	Unmark(ctx context.Context, key string) error
}

// TutorService answers a user message inside a word's thread.
type TutorService interface {
	Respond(ctx context.Context, threadRef, userMessage string) string
}

// PostRunner triggers the new-word workflow.
type PostRunner interface {
	Run(ctx context.Context) (core.Item, error)
}

type Router struct {
	dedup    DedupStore
	items    core.ItemRepository
	settings core.SettingsRepository
	platform core.Platform
	tutor    TutorService
	poster   PostRunner
	gate     *ratelimit.Gate
}

func New(dedup DedupStore, items core.ItemRepository, settings core.SettingsRepository, platform core.Platform, tutor TutorService, poster PostRunner, gate *ratelimit.Gate) *Router {
	return &Router{
		dedup:    dedup,
		items:    items,
		settings: settings,
		platform: platform,
		tutor:    tutor,
		poster:   poster,
		gate:     gate,
	}
}

// Handle routes one inbound event identified by its idempotency key.
// The key is claimed durably before the state-changing action runs and
// released again if that action fails fatally, so a redelivery can
// retry. A rate-limit denial happens before the claim and returns
// core.ErrRateLimited with nothing marked.
func (r *Router) Handle(ctx context.Context, event core.InboundEvent, key string) (Outcome, error) {
	logger := log.FromCtx(ctx).With().Str("key", key).Str("thread", event.ThreadRef).Logger()
	ctx = logger.WithContext(ctx)

	dup, err := r.dedup.IsDuplicate(ctx, key)
	if err != nil {
		return "", fmt.Errorf("dedup check: %w", err)
	}
	if dup {
		logger.Debug().Msg("duplicate event, ignoring")
		return OutcomeDuplicate, nil
	}

	item, err := r.items.FindByThread(ctx, event.ThreadRef)
	if err != nil {
		return "", fmt.Errorf("resolve thread: %w", err)
	}

	if item == nil {
		themeThread, err := r.settings.ThemeThread(ctx)
		if err != nil {
			return "", fmt.Errorf("read theme thread: %w", err)
		}
		if themeThread != "" && themeThread == event.ThreadRef {
			return r.handleThemeUpdate(ctx, event, key)
		}
		logger.Debug().Msg("message in unrecognized thread, ignoring")
		return OutcomeIgnored, nil
	}

	if item.Resolution == core.ResolutionPending {
		return r.handleFirstResponse(ctx, event, key, item)
	}
	return r.handleResolved(ctx, event, key, item)
}

// handleThemeUpdate mutates the theme setting from a message in the
// designated theme thread.
func (r *Router) handleThemeUpdate(ctx context.Context, event core.InboundEvent, key string) (Outcome, error) {
	logger := log.FromCtx(ctx)

	if !r.gate.TryAcquire() {
		return "", core.ErrRateLimited
	}
	if err := r.claim(ctx, key, "theme"); err != nil {
		if errors.Is(err, core.ErrAlreadyProcessed) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	text := strings.TrimSpace(event.Text)

	if utf8.RuneCountInString(text) > core.MaxThemeLength {
		// Invalid input is answered but changes nothing.
		if err := r.post(ctx, event.ThreadRef, themeTooLongMessage); err != nil {
			return r.release(ctx, key, err)
		}
		return OutcomeThemeRejected, nil
	}

	if clearThemePhrases[strings.ToLower(text)] {
		if err := r.settings.ClearTheme(ctx); err != nil {
			return r.release(ctx, key, fmt.Errorf("clear theme: %w", err))
		}
		logger.Info().Msg("theme cleared")
		if err := r.post(ctx, event.ThreadRef, themeClearedMessage); err != nil {
			return r.release(ctx, key, err)
		}
		return OutcomeThemeCleared, nil
	}

	if err := r.settings.SetTheme(ctx, text); err != nil {
		return r.release(ctx, key, fmt.Errorf("set theme: %w", err))
	}
	logger.Info().Str("theme", text).Msg("theme updated")
	if err := r.post(ctx, event.ThreadRef, fmt.Sprintf(themeSetMessageFmt, text)); err != nil {
		return r.release(ctx, key, err)
	}
	return OutcomeThemeSet, nil
}

// handleFirstResponse processes the first substantive reply to a
// pending word. The resolution transitions exactly once here.
func (r *Router) handleFirstResponse(ctx context.Context, event core.InboundEvent, key string, item *core.Item) (Outcome, error) {
	logger := log.FromCtx(ctx)

	if !r.gate.TryAcquire() {
		return "", core.ErrRateLimited
	}
	if err := r.claim(ctx, key, "message"); err != nil {
		if errors.Is(err, core.ErrAlreadyProcessed) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	if strings.TrimSpace(event.Text) == "1" {
		if err := r.items.SetResolution(ctx, item.ID, core.ResolutionKnown); err != nil {
			if errors.Is(err, core.ErrAlreadyResolved) {
				return r.reRouteResolved(ctx, event, key)
			}
			return r.release(ctx, key, fmt.Errorf("mark known: %w", err))
		}
		logger.Info().Str("word", item.Word).Msg("user knew the word")
		if err := r.post(ctx, event.ThreadRef, ackKnownMessage); err != nil {
			logger.Error().Err(err).Msg("failed to post acknowledgment")
		}
		r.runPoster(ctx)
		return OutcomeKnown, nil
	}

	if err := r.items.SetResolution(ctx, item.ID, core.ResolutionLearning); err != nil {
		if errors.Is(err, core.ErrAlreadyResolved) {
			return r.reRouteResolved(ctx, event, key)
		}
		return r.release(ctx, key, fmt.Errorf("mark learning: %w", err))
	}
	logger.Info().Str("word", item.Word).Msg("user is learning the word")

	reply := r.tutor.Respond(ctx, event.ThreadRef, event.Text)
	if err := r.post(ctx, event.ThreadRef, reply); err != nil {
		logger.Error().Err(err).Msg("failed to post tutor reply")
	}
	return OutcomeLearning, nil
}

// reRouteResolved handles the loser of a first-response race: a
// concurrent event already moved the word out of pending. The claim is
// held at this point, so the event replays against the fresh item
// without claiming again.
func (r *Router) reRouteResolved(ctx context.Context, event core.InboundEvent, key string) (Outcome, error) {
	log.FromCtx(ctx).Info().Msg("word resolved by a concurrent event, rerouting")

	item, err := r.items.FindByThread(ctx, event.ThreadRef)
	if err != nil {
		return r.release(ctx, key, fmt.Errorf("resolve thread: %w", err))
	}
	if item == nil {
		return OutcomeIgnored, nil
	}
	return r.respondResolved(ctx, event, key, item)
}

// handleResolved processes messages in a thread whose word was already
// answered. The resolution never changes here.
func (r *Router) handleResolved(ctx context.Context, event core.InboundEvent, key string, item *core.Item) (Outcome, error) {
	if !r.gate.TryAcquire() {
		return "", core.ErrRateLimited
	}
	if err := r.claim(ctx, key, "message"); err != nil {
		if errors.Is(err, core.ErrAlreadyProcessed) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	return r.respondResolved(ctx, event, key, item)
}

func (r *Router) respondResolved(ctx context.Context, event core.InboundEvent, key string, item *core.Item) (Outcome, error) {
	logger := log.FromCtx(ctx)

	if strings.TrimSpace(event.Text) == "1" {
		logger.Info().Str("word", item.Word).Msg("user requested a new word from a resolved thread")

		latest, err := r.items.FindLatest(ctx)
		if err != nil {
			return r.release(ctx, key, fmt.Errorf("find latest item: %w", err))
		}
		if latest != nil && latest.Resolution == core.ResolutionPending {
			msg := fmt.Sprintf(redirectMessageFmt, latest.Word)
			if err := r.post(ctx, event.ThreadRef, msg); err != nil {
				return r.release(ctx, key, err)
			}
			logger.Info().Str("pending", latest.Word).Msg("redirected user to pending word")
			return OutcomeRedirected, nil
		}

		if err := r.post(ctx, event.ThreadRef, ackNewWordMessage); err != nil {
			return r.release(ctx, key, err)
		}
		r.runPoster(ctx)
		return OutcomeNewWord, nil
	}

	reply := r.tutor.Respond(ctx, event.ThreadRef, event.Text)
	if err := r.post(ctx, event.ThreadRef, reply); err != nil {
		return r.release(ctx, key, err)
	}
	return OutcomeTutored, nil
}

// runPoster invokes the new-word workflow after the triggering action
// already committed. A failure here is not fatal for the event; the
// scheduler will retry on its next tick.
func (r *Router) runPoster(ctx context.Context) {
	if _, err := r.poster.Run(ctx); err != nil {
		if errors.Is(err, core.ErrAwaitingResponse) {
			log.FromCtx(ctx).Info().Msg("new word already pending, not posting another")
			return
		}
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to post new word now, will retry on schedule")
	}
}

func (r *Router) claim(ctx context.Context, key, eventType string) error {
	return r.dedup.MarkProcessed(ctx, key, eventType)
}

// release undoes the dedup claim after a fatal failure so a redelivery
// can run the action again, then passes the failure through.
func (r *Router) release(ctx context.Context, key string, cause error) (Outcome, error) {
	if err := r.dedup.Unmark(ctx, key); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("key", key).Msg("failed to release dedup claim")
	}
	return "", cause
}

func (r *Router) post(ctx context.Context, threadRef, text string) error {
	if _, err := r.platform.PostToThread(ctx, threadRef, text); err != nil {
		return fmt.Errorf("post to thread: %w", err)
	}
	return nil
}
