package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zakodium/adonis-mongodb/pkg/migration"
)

func newMakeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "make:migration <name>",
		Short: "Make a new migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Join(flags.root, migration.DefaultDir)

			path, err := migration.Scaffold(dir, args[0], time.Now())
			if err != nil {
				return report(cmd, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("CREATE: %s", path))

			return nil
		},
	}
}
