package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitalk/apistub/bootstrap"
	"github.com/vitalk/apistub/config"
)

var routesJSON bool

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the registered endpoints",
	Long: `List every resource endpoint with its name and allowed methods.
The database is not touched.

Examples:
  apistub routes
  apistub routes --json`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "output as JSON")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Routes only depend on the record types, so a scratch database will do.
	cfg.Database.DSN = ":memory:"
	cfg.Metrics.Enabled = false
	cfg.Logging.Level = "error"

	app, err := bootstrap.New(cfg, bootstrap.WithLogOutput(io.Discard))
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Shutdown()

	routes := app.API.Routes()

	if routesJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRULE\tMETHODS")
	fmt.Fprintln(w, "----\t----\t-------")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Rule, strings.Join(r.Methods, ","))
	}
	return w.Flush()
}
