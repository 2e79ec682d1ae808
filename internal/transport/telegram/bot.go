package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/internal/service/dispatch"
	"github.com/sandevgo/lexibot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

const themeThreadIntro = "This is the theme thread. Post a theme here to bias new words " +
	"(100 characters max), or say \"clear\" to remove it."

type Bot struct {
	bot        *tele.Bot
	cfg        *config.TelegramConfig
	dispatcher *dispatch.Dispatcher
	platform   *Platform
	settings   core.SettingsRepository
	threadLog  core.ThreadLogRepository
	ownerID    int64
}

// NewClient creates the underlying Telegram client. Shared by the
// Platform adapter and the inbound Bot.
func NewClient(cfg *config.TelegramConfig) (*tele.Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

func NewBot(
	ctx context.Context,
	b *tele.Bot,
	cfg *config.TelegramConfig,
	dispatcher *dispatch.Dispatcher,
	platform *Platform,
	settings core.SettingsRepository,
	threadLog core.ThreadLogRepository,
) *Bot {
	bot := &Bot{
		bot:        b,
		cfg:        cfg,
		dispatcher: dispatcher,
		platform:   platform,
		settings:   settings,
		threadLog:  threadLog,
		ownerID:    cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != bot.ownerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle("/theme", bot.handleThemeCommand)
	b.Handle(tele.OnText, bot.handleMessage)

	return bot
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

// handleMessage normalizes a text message into an inbound event and
// hands it to the dispatcher. Messages outside the configured chat or
// outside any topic are ignored.
func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	msg := c.Message()
	if c.Chat().ID != b.cfg.ChatID || msg.ThreadID == 0 {
		return nil
	}

	threadRef := strconv.Itoa(msg.ThreadID)
	if err := b.threadLog.Record(ctx, threadRef, core.SenderUser, c.Text(), msg.Time()); err != nil {
		logger.Error().Err(err).Str("thread", threadRef).Msg("failed to log inbound message")
	}

	event := core.InboundEvent{
		EventID:   fmt.Sprintf("tg:%d:%d", c.Chat().ID, msg.ID),
		ThreadRef: threadRef,
		UserID:    strconv.FormatInt(c.Sender().ID, 10),
		Text:      c.Text(),
		Timestamp: msg.Time(),
		Type:      "message",
	}

	_ = c.Notify(tele.Typing)

	if err := b.dispatcher.Submit(event); err != nil {
		logger.Warn().Err(err).Str("thread", threadRef).Msg("event not accepted")
		return c.Send("I'm a bit busy right now, please try again in a moment.")
	}
	return nil
}

// handleThemeCommand sets up the designated theme topic on first use
// and points back to it afterwards.
func (b *Bot) handleThemeCommand(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	themeThread, err := b.settings.ThemeThread(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read theme thread")
		return c.Send("Something went wrong, please try again.")
	}

	if themeThread != "" {
		return c.Send("The theme thread already exists. Post your theme there.")
	}

	threadRef, err := b.platform.CreateThread(ctx, themeThreadIntro)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create theme thread")
		return c.Send("Couldn't create the theme thread, please try again.")
	}
	if err := b.settings.SetThemeThread(ctx, threadRef); err != nil {
		logger.Error().Err(err).Str("thread", threadRef).Msg("failed to store theme thread")
		return c.Send("Couldn't store the theme thread, please try again.")
	}

	logger.Info().Str("thread", threadRef).Msg("theme thread created")
	return c.Send("Theme thread created. Post your theme there.")
}
