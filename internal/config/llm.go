package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lexibot/pkg/log"
)

type LLMConfig struct {
	Model string `env:"LLM_MODEL" envDefault:"gpt-4o"`

	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey    string `env:"OPENROUTER_API_KEY"`
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	OllamaBaseURL       string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey        string `env:"OLLAMA_API_KEY"`
	CustomOpenAIBaseURL string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomOpenAIAPIKey  string `env:"CUSTOM_OPENAI_API_KEY"`

	// Generation parameters. Tutoring answers stay short and slightly
	// more conversational than word generation.
	Temperature      float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens        int     `env:"LLM_MAX_TOKENS" envDefault:"300"`
	TutorMaxTokens   int     `env:"TUTOR_MAX_TOKENS" envDefault:"150"`
	TutorTokenBudget int     `env:"TUTOR_TOKEN_BUDGET" envDefault:"2000"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
