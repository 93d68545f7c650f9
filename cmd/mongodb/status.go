package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zakodium/adonis-mongodb/pkg/migration"
)

func newStatusCommand(flags *globalFlags) *cobra.Command {
	var connection string

	cmd := &cobra.Command{
		Use:   "migration:status",
		Short: "Show pending and completed migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mc, err := loadMigrationContext(cmd.Context(), flags, connection)
			if err != nil {
				return report(cmd, err)
			}
			defer mc.close()

			entries, err := migration.NewRunner(mc.conn, mc.migrations, migration.WithLogger(mc.logger)).Status(cmd.Context())
			if err != nil {
				return report(cmd, err)
			}

			return printStatus(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "database connection to use, the primary one by default")

	return cmd
}

func printStatus(out io.Writer, entries []migration.StatusEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tSTATUS\tBATCH\tDATE\tDESCRIPTION")

	for _, e := range entries {
		state := color.YellowString(string(e.State))
		batch := "NA"
		date := ""

		if e.State == migration.StateCompleted {
			state = color.GreenString(string(e.State))
			batch = strconv.Itoa(e.Batch)
			date = e.Date.Local().Format(time.DateTime)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, state, batch, date, e.Description)
	}

	return w.Flush()
}

// report prints err in red and returns it so cobra exits non-zero.
func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error: %v", err))
	return err
}
