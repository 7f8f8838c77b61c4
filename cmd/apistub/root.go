package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apistub",
	Short: "Generic CRUD REST resources over SQLite",
	Long: `apistub serves paginated, validated CRUD endpoints for its record
types (artists and albums) backed by SQLite.

Quick start:
  apistub migrate   # Create the database tables
  apistub serve     # Start the HTTP server

Inspection:
  apistub routes    # List the registered endpoints
  apistub validate  # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "apistub.yaml", "config file path")
}
