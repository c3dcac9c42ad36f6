package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/labpool/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the datastore applies every pending migration.
		ds, err := cfg.InitializeDatabase()
		if err != nil {
			return err
		}
		defer ds.Close()
		return printVersion(cmd, migrations.Default(ds.DB))
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.InitializeDatabase()
		if err != nil {
			return err
		}
		defer ds.Close()

		m := migrations.Default(ds.DB)
		if err := m.Rollback(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, m)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := cfg.InitializeDatabase()
		if err != nil {
			return err
		}
		defer ds.Close()

		m := migrations.Default(ds.DB)
		current, err := m.GetCurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		for _, mig := range m.GetMigrations() {
			state := "pending"
			if mig.Version <= current {
				state = "applied"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-24s %s\n", mig.Version, mig.Name, state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateRollbackCmd, migrateStatusCmd)
}

func printVersion(cmd *cobra.Command, m *migrations.Migrator) error {
	v, err := m.GetCurrentVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
