package tutor

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/lexibot/internal/core"
)

// TokenCounter estimates how many tokens a string costs against the
// context budget.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// approxCounter is the fallback when no encoding is available for the
// model. Four characters per token is close enough for budget trimming.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter returns a counter for the given model, falling back
// to cl100k_base and then to a character approximation.
func NewTokenCounter(model string) TokenCounter {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return tiktokenCounter{enc: enc}
	}
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		return tiktokenCounter{enc: enc}
	}
	return approxCounter{}
}

// formatContext renders a thread history as "Sender: text" lines in
// chronological order, skipping empty messages.
func formatContext(messages []core.ThreadMessage) []string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		sender := "User"
		if msg.Sender == core.SenderBot {
			sender = "Bot"
		}
		lines = append(lines, sender+": "+msg.Text)
	}
	return lines
}

// trimToBudget drops the oldest lines until the joined context fits the
// token budget. The newest lines carry the conversation state and are
// kept whole.
func trimToBudget(lines []string, budget int, counter TokenCounter) string {
	if budget <= 0 {
		return strings.Join(lines, "\n")
	}

	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		cost := counter.Count(lines[i]) + 1
		if total+cost > budget && start < len(lines) {
			break
		}
		total += cost
		start = i
	}
	return strings.Join(lines[start:], "\n")
}
