package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ms-autobook/internal/autobook/db"
	"ms-autobook/internal/clock"
	"ms-autobook/internal/config"
	"ms-autobook/internal/database"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/scheduler"
)

func NewProcessCmd() *cobra.Command {
	var (
		eventIDs []string
		at       string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one processing pass and print its summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			clk := clock.Real()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				clk = clock.Fixed(t)
			}

			cfg := config.Load()
			// Logs go to stderr; stdout carries only the JSON summary.
			log := logger.NewLoggerTo(serviceName, cmd.ErrOrStderr())
			defer log.Close()
			ctx := cmd.Context()

			bunDB, err := database.Connect(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer bunDB.Close()

			deps := connectDependencies(ctx, cfg, log)
			defer deps.Close()

			store := db.New(bunDB)
			processor := newProcessor(cfg, store, store, deps.notifier(cfg, nil, log), log)
			sched := scheduler.New(processor, nil, clk, cfg.AutoBook.PollInterval, cfg.AutoBook.PassTimeout, log)

			summary, passErr := sched.Trigger(ctx, scheduler.SourceManual, eventIDs)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			}
			return passErr
		},
	}
	cmd.Flags().StringSliceVar(&eventIDs, "event-id", nil, "restrict the pass to these events (repeatable)")
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 instant instead of now")
	return cmd
}
