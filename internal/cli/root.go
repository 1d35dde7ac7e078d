// Package cli holds the docket commands.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docket",
		Short: "Public-safety record sync service",
		Long: `docket merges scraped public-safety snapshots (jail rosters, dispatch calls,
registry entrants, daily bulletin reports, corrections offenders) into PostgreSQL
without duplicating records a batch has already delivered.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewIngestCommand())
	cmd.AddCommand(NewDLQCommand())

	return cmd
}
