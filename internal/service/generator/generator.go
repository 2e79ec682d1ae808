// Package generator produces new vocabulary words through the LLM
// backend, guaranteeing that each word is unique across history.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/internal/providers/llm"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
	"github.com/sandevgo/lexibot/pkg/retry"
)

// maxAttempts bounds the uniqueness loop. Each attempt is a full
// prompt-complete-parse cycle.
const maxAttempts = 5

type Generator struct {
	items    core.ItemRepository
	settings core.SettingsRepository
	llm      core.Completer
	gate     *ratelimit.Gate
	retrier  *retry.Retrier
	cfg      *config.LLMConfig
}

func New(items core.ItemRepository, settings core.SettingsRepository, completer core.Completer, gate *ratelimit.Gate, retrier *retry.Retrier, cfg *config.LLMConfig) *Generator {
	return &Generator{
		items:    items,
		settings: settings,
		llm:      completer,
		gate:     gate,
		retrier:  retrier,
		cfg:      cfg,
	}
}

// Generate produces a new unique word card. It refuses with
// core.ErrAwaitingResponse while the latest item is still pending, so a
// word is never posted on top of an unanswered one.
func (g *Generator) Generate(ctx context.Context) (core.WordCard, error) {
	logger := log.FromCtx(ctx)

	res, ok, err := g.items.LastResolution(ctx)
	if err != nil {
		return core.WordCard{}, fmt.Errorf("check last resolution: %w", err)
	}
	if ok && res == core.ResolutionPending {
		return core.WordCard{}, core.ErrAwaitingResponse
	}

	items, err := g.items.List(ctx, core.FilterAll)
	if err != nil {
		return core.WordCard{}, fmt.Errorf("list items: %w", err)
	}

	var existing, known, learning []string
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		existing = append(existing, it.Word)
		seen[strings.ToLower(it.Word)] = true
		switch it.Resolution {
		case core.ResolutionKnown:
			known = append(known, it.Word)
		case core.ResolutionLearning:
			learning = append(learning, it.Word)
		}
	}

	theme, err := g.settings.Theme(ctx)
	if err != nil {
		return core.WordCard{}, fmt.Errorf("read theme: %w", err)
	}
	if theme != "" {
		logger.Info().Str("theme", theme).Msg("generating word with theme")
	}

	prompt := generationPrompt(existing, known, learning, theme)

	var lastParseErr error
	duplicates := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := g.complete(ctx, prompt)
		if err != nil {
			return core.WordCard{}, fmt.Errorf("llm completion: %w", err)
		}

		card, err := ParseWordCard(raw)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("unparseable generation response")
			lastParseErr = err
			continue
		}

		if seen[strings.ToLower(card.Word)] {
			logger.Warn().Str("word", card.Word).Int("attempt", attempt).Msg("generated duplicate word, retrying")
			duplicates++
			continue
		}

		card.Theme = theme
		logger.Info().Str("word", card.Word).Msg("generated unique word")
		return card, nil
	}

	if duplicates > 0 {
		return core.WordCard{}, core.ErrNoUniqueWord
	}
	return core.WordCard{}, fmt.Errorf("%w: %v", core.ErrGenerationFailed, lastParseErr)
}

// complete runs one gated, retried completion call. Transient backend
// failures are retried with backoff; permanent ones abort immediately.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.retrier.Do(ctx, func() error {
		if !g.gate.TryAcquire() {
			wait := g.gate.TimeUntilNextSlot()
			log.FromCtx(ctx).Debug().Dur("wait", wait).Msg("llm gate exhausted, backing off")
			select {
			case <-ctx.Done():
				return retry.Permanent(ctx.Err())
			case <-time.After(wait):
			}
			if !g.gate.TryAcquire() {
				return core.ErrRateLimited
			}
		}

		resp, err := g.llm.Complete(ctx, core.CompletionRequest{
			Prompt:       prompt,
			SystemPrompt: systemPrompt,
			Temperature:  g.cfg.Temperature,
			MaxTokens:    g.cfg.MaxTokens,
		})
		if err != nil {
			if !llm.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

// ParseWordCard extracts a word card from a raw completion. Backends
// sometimes wrap the JSON in code fences or collapse the lists into a
// single string; both are tolerated.
func ParseWordCard(response string) (core.WordCard, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		Word     string          `json:"word"`
		Meanings json.RawMessage `json:"meanings"`
		Examples json.RawMessage `json:"examples"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return core.WordCard{}, fmt.Errorf("parse response: %w", err)
	}

	word := strings.TrimSpace(raw.Word)
	if word == "" {
		return core.WordCard{}, fmt.Errorf("parse response: missing word")
	}

	meanings, err := stringList(raw.Meanings)
	if err != nil || len(meanings) == 0 {
		return core.WordCard{}, fmt.Errorf("parse response: missing meanings")
	}
	examples, err := stringList(raw.Examples)
	if err != nil || len(examples) == 0 {
		return core.WordCard{}, fmt.Errorf("parse response: missing examples")
	}

	return core.WordCard{Word: word, Meanings: meanings, Examples: examples}, nil
}

// stringList accepts either a JSON array of strings or a bare string.
func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty field")
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	single = strings.TrimSpace(single)
	if single == "" {
		return nil, fmt.Errorf("empty field")
	}
	return []string{single}, nil
}
