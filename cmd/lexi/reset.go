package main

import (
	"fmt"

	"github.com/sandevgo/lexibot/internal/config"
	"github.com/sandevgo/lexibot/internal/storage/sqlite"
	"github.com/sandevgo/lexibot/pkg/log"
	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:           "reset",
	Short:         "Delete the whole word history and clear the theme",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if !resetConfirmed {
			return fmt.Errorf("this deletes all word history; re-run with --yes to confirm")
		}

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqlite.NewItems(db).DeleteAll(ctx); err != nil {
			return err
		}
		if err := sqlite.NewSettings(db).ClearTheme(ctx); err != nil {
			return err
		}

		log.FromCtx(ctx).Info().Msg("word history deleted")
		fmt.Println("Word history deleted. The next start posts a fresh word.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "confirm deletion")
	rootCmd.AddCommand(resetCmd)
}
