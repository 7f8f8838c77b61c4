package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalk/apistub/bootstrap"
	"github.com/vitalk/apistub/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long: `Create the tables of every record type in the configured database.
Existing tables are left untouched.

Examples:
  apistub migrate
  APISTUB_DATABASE_DSN=/var/lib/apistub/data.db apistub migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := bootstrap.Migrate(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date.\n", cfg.Database.DSN)
	return nil
}
