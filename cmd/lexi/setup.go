package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/providers/llm"
	"github.com/sandevgo/lexibot/internal/service/dedup"
	"github.com/sandevgo/lexibot/internal/service/dispatch"
	"github.com/sandevgo/lexibot/internal/service/generator"
	"github.com/sandevgo/lexibot/internal/service/poster"
	"github.com/sandevgo/lexibot/internal/service/router"
	"github.com/sandevgo/lexibot/internal/service/scheduler"
	"github.com/sandevgo/lexibot/internal/service/tutor"
	"github.com/sandevgo/lexibot/internal/storage/sqlite"
	"github.com/sandevgo/lexibot/internal/transport/telegram"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/sandevgo/lexibot/pkg/ratelimit"
	"github.com/sandevgo/lexibot/pkg/retry"
	"github.com/sandevgo/lexibot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	tgCfg := config.NewTelegramConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	schedCfg := config.NewSchedulerConfig(ctx)
	limitsCfg := config.NewLimitsConfig(ctx)

	// 2. Storage
	db, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	items := sqlite.NewItems(db)
	settings := sqlite.NewSettings(db)
	events := sqlite.NewEvents(db)
	threadLog := sqlite.NewThreadLog(db)

	// 3. Outbound gates, one per external dependency
	platformGate := ratelimit.PerMinute("platform", limitsCfg.PlatformPerMinute)
	llmGate := ratelimit.PerMinute("llm", limitsCfg.LLMPerMinute)
	retrier := retry.NewDefaultRetrier()

	// 4. LLM provider
	completer, err := llm.NewProvider(ctx, appCfg.LLMProvider, llmCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 5. Telegram client and platform adapter
	client, err := telegram.NewClient(tgCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telegram client")
	}
	platform := telegram.NewPlatform(client, tgCfg.ChatID, threadLog)

	// 6. Core services
	dedupStore := dedup.NewStore(
		dedup.NewTTLCache(limitsCfg.DedupCacheSize, limitsCfg.DedupCacheTTL),
		events,
	)
	gen := generator.New(items, settings, completer, llmGate, retrier, llmCfg)
	tut := tutor.New(items, settings, platform, completer, llmGate, retrier, llmCfg)
	workflow := poster.NewWorkflow(gen, platform, items, platformGate, retrier)
	rt := router.New(dedupStore, items, settings, platform, tut, workflow, platformGate)

	// 7. Event workers
	dispatcher := dispatch.NewDispatcher(rt, platform, limitsCfg.Workers, limitsCfg.QueueSize)
	services = append(services, dispatcher)

	// 8. Scheduler: daily word plus dedup cleanup
	services = append(services, scheduler.New(workflow, items, dedupStore, schedCfg))

	// 9. Transport
	bot := telegram.NewBot(ctx, client, tgCfg, dispatcher, platform, settings, threadLog)
	services = append(services, bot)

	// Database closes after everything that uses it has stopped.
	services = append(services, srv.NewCleanup(db.Close))

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0o755); err != nil {
		return nil, err
	}
	return sqlite.NewDB(ctx, cfg.GetDatabasePath())
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
