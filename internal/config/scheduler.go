package config

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/lexibot/pkg/log"
)

var dailyTimeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

type SchedulerConfig struct {
	// DailyWordTime is the local wall-clock time ("HH:MM") of the daily post.
	DailyWordTime string `env:"DAILY_WORD_TIME" envDefault:"09:00"`
	Timezone      string `env:"TIMEZONE" envDefault:"America/New_York"`

	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	EventRetention  time.Duration `env:"EVENT_RETENTION" envDefault:"24h"`
	ShutdownGrace   time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

func NewSchedulerConfig(ctx context.Context) *SchedulerConfig {
	c := &SchedulerConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Scheduler config")
	}
	if !dailyTimeRe.MatchString(c.DailyWordTime) {
		log.FromCtx(ctx).Warn().Str("time", c.DailyWordTime).Msg("invalid DAILY_WORD_TIME, falling back to 09:00")
		c.DailyWordTime = "09:00"
	}
	return c
}

// DailyCron converts "HH:MM" into a five-field cron expression.
func (c SchedulerConfig) DailyCron() string {
	var hour, minute int
	fmt.Sscanf(c.DailyWordTime, "%d:%d", &hour, &minute)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// Location resolves the configured timezone, falling back to UTC.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
