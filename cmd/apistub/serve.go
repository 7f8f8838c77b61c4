package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vitalk/apistub/bootstrap"
	"github.com/vitalk/apistub/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the apistub HTTP server.

The server will:
  - Load configuration from apistub.yaml (or --config)
  - Or load configuration from APISTUB_* environment variables
  - Open the database and create missing tables
  - Serve the record resources under api.base_path

Environment variables (for Docker deployments):
  APISTUB_DATABASE_DSN      - Database path (default: apistub.db)
  APISTUB_SERVER_PORT       - Server port (default: 8080)
  APISTUB_API_BASE_PATH     - Route prefix (default: none)
  APISTUB_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  apistub serve
  apistub serve --config /etc/apistub/config.yaml
  apistub serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var (
		app *bootstrap.App
		err error
	)

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		holder, holdErr := config.NewHolder(cfgFile, zerolog.New(os.Stderr).With().Timestamp().Logger())
		if holdErr != nil {
			return fmt.Errorf("error loading config: %w", holdErr)
		}
		if err := holder.WatchFile(); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		holder.WatchSignals()

		app, err = bootstrap.New(holder.Get(), bootstrap.WithHolder(holder))
	} else {
		// Load config (file with env overrides, or env-only)
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run(cmd.Context())
}
