package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lexibot/pkg/log"
)

// LimitsConfig bounds outbound calls and in-memory dedup state.
// Each external dependency gets its own independent limit.
type LimitsConfig struct {
	PlatformPerMinute int `env:"PLATFORM_CALLS_PER_MINUTE" envDefault:"50"`
	LLMPerMinute      int `env:"LLM_CALLS_PER_MINUTE" envDefault:"10"`

	DedupCacheSize int           `env:"DEDUP_CACHE_SIZE" envDefault:"10000"`
	DedupCacheTTL  time.Duration `env:"DEDUP_CACHE_TTL" envDefault:"1h"`

	Workers   int `env:"EVENT_WORKERS" envDefault:"4"`
	QueueSize int `env:"EVENT_QUEUE_SIZE" envDefault:"64"`
}

func NewLimitsConfig(ctx context.Context) *LimitsConfig {
	c := &LimitsConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Limits config")
	}
	return c
}
