package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ms-autobook/internal/config"
	"ms-autobook/internal/database"
	"ms-autobook/internal/database/migrations"
	"ms-autobook/internal/logger"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(
		migrateSubcommand("up", "Apply all pending migrations", cobra.NoArgs, func(r *migrations.Runner, _ []string) error {
			return r.Up()
		}),
		migrateSubcommand("down", "Roll back every migration", cobra.NoArgs, func(r *migrations.Runner, _ []string) error {
			return r.Down()
		}),
		migrateSubcommand("to VERSION", "Migrate up or down to VERSION", cobra.ExactArgs(1), func(r *migrations.Runner, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return r.To(uint(v))
		}),
		migrateSubcommand("version", "Print the current schema version", cobra.NoArgs, func(r *migrations.Runner, _ []string) error {
			v, dirty, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
			return nil
		}),
	)
	return cmd
}

func migrateSubcommand(use, short string, args cobra.PositionalArgs, run func(*migrations.Runner, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.NewLogger(serviceName)
			defer log.Close()

			bunDB, err := database.Connect(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer bunDB.Close()

			runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Migrations.Dir}, log)
			defer runner.Close()
			return run(runner, args)
		},
	}
}
