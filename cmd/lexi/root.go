package main

import (
	"context"
	"os"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:     "lexi",
	Short:   "LexiBot — a daily vocabulary tutor",
	Long:    `LexiBot posts a vocabulary word every day and tutors you on it in a conversation thread.`,
	Version: core.LexiVersion,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
