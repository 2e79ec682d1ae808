package main

import (
	"fmt"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/core"
	"github.com/sandevgo/lexibot/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var wordsFilter string

var wordsCmd = &cobra.Command{
	Use:           "words",
	Short:         "List the vocabulary word history",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		filter := core.ListFilter(wordsFilter)
		switch filter {
		case core.FilterAll, core.FilterKnown, core.FilterLearning:
		default:
			return fmt.Errorf("invalid filter %q (want all, known or learning)", wordsFilter)
		}

		appCfg := config.NewAppConfig(ctx)
		db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := sqlite.NewItems(db).List(ctx, filter)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No words yet.")
			return nil
		}

		for _, item := range items {
			fmt.Printf("%-24s %-10s %s\n", item.Word, item.Resolution, item.CreatedAt.Local().Format("2006-01-02"))
		}
		fmt.Printf("\n%d words\n", len(items))
		return nil
	},
}

func init() {
	wordsCmd.Flags().StringVarP(&wordsFilter, "filter", "f", "all", "filter by resolution: all, known or learning")
	rootCmd.AddCommand(wordsCmd)
}
