package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zakodium/adonis-mongodb/pkg/migration"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var connection string

	cmd := &cobra.Command{
		Use:   "migration:run",
		Short: "Execute pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mc, err := loadMigrationContext(cmd.Context(), flags, connection)
			if err != nil {
				return report(cmd, err)
			}
			defer mc.close()

			result, err := migration.NewRunner(mc.conn, mc.migrations, migration.WithLogger(mc.logger)).Run(cmd.Context())

			for _, name := range result.Executed {
				fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ %s", name))
			}

			if err != nil {
				return report(cmd, err)
			}

			if len(result.Executed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migration")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Executed %d migrations in batch %d\n", len(result.Executed), result.Batch)

			return nil
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "database connection to use, the primary one by default")

	return cmd
}
