package main

import (
	"os"

	"github.com/ogurasousui/employee-registry/internal/platform/config"
	"github.com/ogurasousui/employee-registry/internal/platform/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath      = "assets/local.yaml"
	postgresMigrationsDir  = "assets/migrations"
	sqliteMigrationsDir    = "internal/adapters/repository/sqlite/migrations"
	defaultSeedFile        = "assets/seeds/employees.json"
	configPathEnv          = "CONFIG_PATH"
	migrationsDirFlagUsage = "directory containing migration files (defaults by database driver)"
	configPathFlagUsage    = "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)"
)

type rootOptions struct {
	configPath    string
	migrationsDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the employee registry schema and seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", configPathFlagUsage)
	cmd.PersistentFlags().StringVar(&opts.migrationsDir, "dir", "", migrationsDirFlagUsage)

	for _, action := range []struct {
		use   string
		short string
	}{
		{use: actionUp, short: "Apply all pending migrations"},
		{use: actionDown, short: "Roll back all migrations"},
		{use: actionDrop, short: "Drop everything in the database"},
		{use: actionVersion, short: "Print the current migration version"},
	} {
		cmd.AddCommand(newMigrationCmd(opts, action.use, action.short))
	}
	cmd.AddCommand(newSeedCmd(opts))

	return cmd
}

func newMigrationCmd(opts *rootOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := runMigration(action, opts.dirFor(cfg.Database), cfg.Database.MigrationURL(), logger); err != nil {
				return err
			}
			logger.WithField("action", action).Info("migration completed")
			return nil
		},
	}
}

func (o *rootOptions) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(effectiveConfigPath(o.configPath))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (o *rootOptions) dirFor(db config.DatabaseConfig) string {
	if o.migrationsDir != "" {
		return o.migrationsDir
	}
	if db.Driver == config.DriverSQLite {
		return sqliteMigrationsDir
	}
	return postgresMigrationsDir
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configPathEnv); env != "" {
		return env
	}
	return defaultConfigPath
}
