// Package tutor answers user messages inside a word's discussion
// thread, grounding each reply in the full thread history.
package tutor

import (
	"context"
	"strings"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/internal/providers/llm"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
	"github.com/sandevgo/lexibot/pkg/retry"
)

// Canned replies for the paths where no useful LLM answer exists. The
// conversation must never go silent on the user.
const (
	replyNoWord   = "I couldn't find the word associated with this thread. Please try again."
	replyFallback = "Let me help you with that word. Could you try using it in a sentence, or would you like more examples?"
)

type Tutor struct {
	items    core.ItemRepository
	settings core.SettingsRepository
	platform core.Platform
	llm      core.Completer
	gate     *ratelimit.Gate
	retrier  *retry.Retrier
	counter  TokenCounter
	cfg      *config.LLMConfig
}

func New(items core.ItemRepository, settings core.SettingsRepository, platform core.Platform, completer core.Completer, gate *ratelimit.Gate, retrier *retry.Retrier, cfg *config.LLMConfig) *Tutor {
	return &Tutor{
		items:    items,
		settings: settings,
		platform: platform,
		llm:      completer,
		gate:     gate,
		retrier:  retrier,
		counter:  NewTokenCounter(cfg.Model),
		cfg:      cfg,
	}
}

// Respond produces the tutor's reply to a user message in threadRef.
// It degrades to a canned reply when the backend fails; the returned
// string is always postable.
func (t *Tutor) Respond(ctx context.Context, threadRef, userMessage string) string {
	logger := log.FromCtx(ctx).With().Str("thread", threadRef).Logger()

	item, err := t.items.FindByThread(ctx, threadRef)
	if err != nil {
		logger.Error().Err(err).Msg("failed to look up thread word")
		return replyFallback
	}
	if item == nil {
		logger.Warn().Msg("no word found for thread")
		return replyNoWord
	}

	threadContext := t.threadContext(ctx, threadRef)

	theme, err := t.settings.Theme(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read theme")
		theme = ""
	}

	prompt := responsePrompt(item.Word, theme, threadContext, userMessage)

	reply, err := t.complete(ctx, prompt)
	if err != nil {
		logger.Error().Err(err).Str("word", item.Word).Msg("tutor completion failed")
		return replyFallback
	}

	logger.Debug().Str("word", item.Word).Msg("generated tutor response")
	return reply
}

// threadContext fetches and renders the conversation history, trimmed
// from the oldest end to fit the token budget. A fetch failure yields
// an empty context rather than no reply at all.
func (t *Tutor) threadContext(ctx context.Context, threadRef string) string {
	messages, err := t.platform.GetThreadMessages(ctx, threadRef)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("thread", threadRef).Msg("failed to fetch thread history")
		return ""
	}
	return trimToBudget(formatContext(messages), t.cfg.TutorTokenBudget, t.counter)
}

func (t *Tutor) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := t.retrier.Do(ctx, func() error {
		if !t.gate.TryAcquire() {
			return core.ErrRateLimited
		}

		resp, err := t.llm.Complete(ctx, core.CompletionRequest{
			Prompt:       prompt,
			SystemPrompt: systemPrompt,
			Temperature:  t.cfg.Temperature,
			MaxTokens:    t.cfg.TutorMaxTokens,
		})
		if err != nil {
			if !llm.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		out = strings.TrimSpace(resp)
		return nil
	})
	return out, err
}
