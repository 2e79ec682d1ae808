package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v9"
	"github.com/sandevgo/lexibot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"LEXI_RUNTIME_PATH" envDefault:".lexibot"`

	// Allow selecting the provider
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "lexibot.db")
}
