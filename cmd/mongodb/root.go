package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zakodium/adonis-mongodb/pkg/configmgr"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/pkg/migration"
	"github.com/zakodium/adonis-mongodb/pkg/profiling"
)

const closeTimeout = 5 * time.Second

type globalFlags struct {
	configDir  string
	root       string
	cpuProfile string
	memProfile string
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "mongodb",
		Short:         "Manage MongoDB migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var stopProfile func() error

	root.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if flags.cpuProfile == "" {
			return nil
		}

		stop, err := profiling.StartCPUProfile(flags.cpuProfile)
		stopProfile = stop

		return err
	}

	root.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if stopProfile != nil {
			if err := stopProfile(); err != nil {
				return err
			}
		}

		if flags.memProfile != "" {
			return profiling.CaptureMemoryProfile(flags.memProfile)
		}

		return nil
	}

	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&flags.configDir, "config", "./config", "directory containing the property files")
	root.PersistentFlags().StringVar(&flags.root, "root", ".", "project root, migration directories are relative to it")
	root.PersistentFlags().StringVar(&flags.cpuProfile, "cpu-profile", "", "write a CPU profile of the command to this file")
	root.PersistentFlags().StringVar(&flags.memProfile, "mem-profile", "", "write a heap profile to this file once the command succeeds")

	root.AddCommand(
		newStatusCommand(flags),
		newRunCommand(flags),
		newMakeCommand(flags),
	)

	return root
}

// migrationContext is what the migration commands need: the database, the selected connection
// and its migrations.
type migrationContext struct {
	db         *dbx.Database
	conn       *dbx.Connection
	migrations []migration.Migration
	logger     logx.Logger
}

func (m *migrationContext) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := m.db.CloseConnections(ctx); err != nil {
		m.logger.LogError(ctx, "error closing MongoDB connections", err)
	}
}

// loadMigrationContext reads the configuration, selects the connection (the primary one when
// connectionName is empty) and discovers its migrations. No connection is opened.
func loadMigrationContext(ctx context.Context, flags *globalFlags, connectionName string) (*migrationContext, error) {
	cfg := &configmgr.BaseConfig{}
	if err := configmgr.LoadConfigFromPathForEnv(flags.configDir, cfg); err != nil {
		return nil, err
	}

	logger := logx.SetupLogger(cfg)

	db, err := dbx.NewDatabase(cfg.GetMongodbConfig(), dbx.WithDatabaseLogger(logger))
	if err != nil {
		return nil, err
	}

	conn, err := db.Connection(connectionName)
	if err != nil {
		return nil, err
	}

	migrations, err := migration.Discover(ctx, migration.Source{
		Root: flags.root,
		Dirs: conn.Config().Migrations,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &migrationContext{db: db, conn: conn, migrations: migrations, logger: logger}, nil
}
