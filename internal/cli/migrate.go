package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the SQL migrations under DATABASE_MIGRATION_FOLDER_PATH.

Without --steps the schema is moved to DATABASE_MIGRATION_VERSION, or to the
newest migration when that is zero. A negative --steps rolls back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), steps)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "apply n migrations relative to the current version (negative rolls back)")

	return cmd
}

func runMigrate(ctx context.Context, steps int) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if err := a.databaseDependency().OnStart(ctx); err != nil {
		return err
	}

	migrations := a.migrationService()
	if steps != 0 {
		return migrations.Steps(a.sqlDB.DB, a.cfg.DatabaseName, steps)
	}
	return migrations.Migrate(a.sqlDB.DB, a.cfg.DatabaseName)
}
