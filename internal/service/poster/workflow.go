// Package poster runs the new-word workflow: generate a word, open its
// discussion thread, post the word card, then record the item.
package poster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
	"github.com/sandevgo/lexibot/pkg/retry"
)

const instructionMessage = "Did you already know this word?\n" +
	"• Reply '1' if you already knew it\n" +
	"• Reply with any other message to learn it (you can ask questions about the word or use it in a sentence for me to give feedback or ask for phonetic or syllable breakdown of the pronunciation)"

// WordSource produces the next word card. Implemented by the generator.
type WordSource interface {
	Generate(ctx context.Context) (core.WordCard, error)
}

// Workflow posts a new vocabulary word. The mutex spans the whole
// generate-post-commit sequence so concurrent triggers (schedule plus
// user ask) cannot interleave; losers of the race are serialized and
// then refused by the pending-word check inside generation.
type Workflow struct {
	mu       sync.Mutex
	source   WordSource
	platform core.Platform
	items    core.ItemRepository
	gate     *ratelimit.Gate
	retrier  *retry.Retrier
}

func NewWorkflow(source WordSource, platform core.Platform, items core.ItemRepository, gate *ratelimit.Gate, retrier *retry.Retrier) *Workflow {
	return &Workflow{
		source:   source,
		platform: platform,
		items:    items,
		gate:     gate,
		retrier:  retrier,
	}
}

// Run executes one pass of the workflow. The item row is written only
// after every message has been posted; an earlier failure leaves no
// record, so a later trigger regenerates cleanly.
func (w *Workflow) Run(ctx context.Context) (core.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := log.FromCtx(ctx)

	card, err := w.source.Generate(ctx)
	if err != nil {
		if errors.Is(err, core.ErrAwaitingResponse) {
			logger.Info().Msg("last word still unanswered, skipping new word")
			return core.Item{}, err
		}
		return core.Item{}, fmt.Errorf("generate word: %w", err)
	}

	threadRef, err := w.createThread(ctx, headlineMessage(card))
	if err != nil {
		return core.Item{}, fmt.Errorf("create word thread: %w", err)
	}

	replies := []string{
		meaningsMessage(card),
		examplesMessage(card),
		instructionMessage,
	}
	for _, msg := range replies {
		if err := w.postToThread(ctx, threadRef, msg); err != nil {
			return core.Item{}, fmt.Errorf("post word card: %w", err)
		}
	}

	item, err := w.items.Create(ctx, card.Word, threadRef)
	if err != nil {
		// The word is already visible to the user. Without the row the
		// same word can be generated again and the pending gate is open.
		logger.Error().Err(err).Str("word", card.Word).Str("thread", threadRef).
			Msg("word posted but not recorded, history is inconsistent")
		return core.Item{}, fmt.Errorf("record posted word: %w", err)
	}

	logger.Info().Str("word", item.Word).Str("thread", item.ThreadRef).Msg("posted new vocabulary word")
	return item, nil
}

func (w *Workflow) createThread(ctx context.Context, text string) (string, error) {
	var ref string
	err := w.retrier.Do(ctx, func() error {
		if !w.gate.TryAcquire() {
			return core.ErrRateLimited
		}
		var err error
		ref, err = w.platform.CreateThread(ctx, text)
		return err
	})
	return ref, err
}

func (w *Workflow) postToThread(ctx context.Context, threadRef, text string) error {
	return w.retrier.Do(ctx, func() error {
		if !w.gate.TryAcquire() {
			return core.ErrRateLimited
		}
		_, err := w.platform.PostToThread(ctx, threadRef, text)
		return err
	})
}

func headlineMessage(card core.WordCard) string {
	return fmt.Sprintf("📚 Today's vocabulary word: *%s*", card.Word)
}

func meaningsMessage(card core.WordCard) string {
	var b strings.Builder
	b.WriteString("*Meanings:*")
	for i, meaning := range card.Meanings {
		fmt.Fprintf(&b, "\n%d. %s", i+1, meaning)
	}
	return b.String()
}

func examplesMessage(card core.WordCard) string {
	var b strings.Builder
	b.WriteString("*Examples:*")
	for _, example := range card.Examples {
		fmt.Fprintf(&b, "\n• %s", example)
	}
	return b.String()
}
