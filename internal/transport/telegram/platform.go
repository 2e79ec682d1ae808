package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

// Telegram caps forum topic names at 128 characters.
const maxTopicNameLen = 128

// Platform adapts a Telegram forum supergroup to the core.Platform
// contract. Every vocabulary thread is a forum topic; thread refs are
// the topic's message_thread_id rendered as a string.
//
// The Bot API cannot read a topic's history back, so every message the
// bot sends (and every user message the bot receives) is mirrored into
// the local thread log, which backs GetThreadMessages.
type Platform struct {
	bot       *tele.Bot
	chat      *tele.Chat
	sender    *sender
	threadLog core.ThreadLogRepository
}

func NewPlatform(bot *tele.Bot, chatID int64, threadLog core.ThreadLogRepository) *Platform {
	chat := &tele.Chat{ID: chatID}
	return &Platform{
		bot:       bot,
		chat:      chat,
		sender:    newSender(bot, chat),
		threadLog: threadLog,
	}
}

func (p *Platform) CreateThread(ctx context.Context, text string) (string, error) {
	topic, err := p.bot.CreateTopic(p.chat, &tele.Topic{Name: topicName(text)})
	if err != nil {
		return "", fmt.Errorf("create forum topic: %w", err)
	}

	threadRef := strconv.Itoa(topic.ThreadID)
	if _, err := p.post(ctx, topic.ThreadID, threadRef, text); err != nil {
		return "", err
	}

	log.FromCtx(ctx).Info().Str("thread", threadRef).Msg("created forum topic")
	return threadRef, nil
}

func (p *Platform) PostToThread(ctx context.Context, threadRef, text string) (string, error) {
	threadID, err := strconv.Atoi(threadRef)
	if err != nil {
		return "", fmt.Errorf("bad thread ref %q: %w", threadRef, err)
	}
	return p.post(ctx, threadID, threadRef, text)
}

func (p *Platform) GetThreadMessages(ctx context.Context, threadRef string) ([]core.ThreadMessage, error) {
	return p.threadLog.Messages(ctx, threadRef)
}

func (p *Platform) post(ctx context.Context, threadID int, threadRef, text string) (string, error) {
	msg, err := p.sender.sendMarkdown(ctx, threadID, text)
	if err != nil {
		return "", fmt.Errorf("send to topic %s: %w", threadRef, err)
	}

	if err := p.threadLog.Record(ctx, threadRef, core.SenderBot, text, time.Now()); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("thread", threadRef).Msg("failed to log outbound message")
	}
	return fmt.Sprintf("%s/%d", threadRef, msg.ID), nil
}

// topicName derives a forum topic title from the headline message,
// dropping markdown emphasis and fitting the length cap.
func topicName(text string) string {
	name := strings.NewReplacer("*", "", "_", "", "`", "").Replace(text)
	if line, _, found := strings.Cut(name, "\n"); found {
		name = line
	}
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxTopicNameLen {
		runes := []rune(name)
		name = string(runes[:maxTopicNameLen])
	}
	return name
}
