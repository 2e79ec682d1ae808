package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "strips emphasis",
			text: "📚 Today's vocabulary word: *ephemeral*",
			want: "📚 Today's vocabulary word: ephemeral",
		},
		{
			name: "keeps first line only",
			text: "headline\nsecond line",
			want: "headline",
		},
		{
			name: "caps length",
			text: strings.Repeat("a", 200),
			want: strings.Repeat("a", 128),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topicName(tt.text))
		})
	}
}

func TestSplitHTML(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := splitHTML("hello", 100)
		assert.Equal(t, []string{"hello"}, chunks)
	})

	t.Run("splits at newline", func(t *testing.T) {
		text := strings.Repeat("x", 80) + "\n" + strings.Repeat("y", 80)
		chunks := splitHTML(text, 100)
		assert.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("x", 80), chunks[0])
		assert.Equal(t, strings.Repeat("y", 80), chunks[1])
	})

	t.Run("hard split without newline", func(t *testing.T) {
		text := strings.Repeat("z", 250)
		chunks := splitHTML(text, 100)
		assert.Len(t, chunks, 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 100)
		}
	})
}
