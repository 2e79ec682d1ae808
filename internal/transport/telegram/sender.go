package telegram

import (
	"context"
	"strings"

	"github.com/sandevgo/lexibot/pkg/conv"
	"github.com/sandevgo/lexibot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

type sender struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func newSender(bot *tele.Bot, chat *tele.Chat) *sender {
	return &sender{bot: bot, chat: chat}
}

// sendMarkdown converts Markdown to Telegram HTML and sends it into a
// forum topic, chunking if needed. Returns the last sent message.
func (s *sender) sendMarkdown(ctx context.Context, threadID int, md string) (*tele.Message, error) {
	logger := log.FromCtx(ctx)
	html := strings.TrimSpace(conv.MarkdownToTelegramHTML([]byte(md)))

	var last *tele.Message
	chunks := splitHTML(html, maxTelegramMsgLen)
	for i, chunk := range chunks {
		msg, err := s.bot.Send(s.chat, chunk, &tele.SendOptions{
			ThreadID:  threadID,
			ParseMode: tele.ModeHTML,
		})
		if err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return nil, err
		}
		last = msg
	}
	return last, nil
}

// splitHTML splits text into chunks respecting Telegram's limit.
// It tries to split at newlines to preserve formatting.
func splitHTML(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := maxLen
		// Try to find a good break point (newline) in the second half of the chunk
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/3 {
			cut = idx
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
