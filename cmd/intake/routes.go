package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/artpar/intake/adapters/clock"
	"github.com/artpar/intake/adapters/idgen"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show the compiled route table",
	Long: `Compile the route and schema manifests and print the resulting
table in match order: most literal segments first, registration order
breaking ties.

Examples:
  intake routes
  intake routes --json`,
	RunE: runRoutes,
}

var routesJSON bool

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "output as JSON")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	svc := app.NewDispatchService(app.Deps{
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
		Logger: zerolog.Nop(),
	}, app.Config{
		RoutesFile: cfg.Definitions.RoutesFile,
		SchemaDir:  cfg.Definitions.SchemaDir,
	})
	defer svc.Stop()

	if err := svc.Reload(); err != nil {
		return fmt.Errorf("definitions error: %w", err)
	}

	routes := svc.Snapshot().Table.Routes()

	if routesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATTERN\tSCHEMA\tHANDLER\tDESCRIPTION")
	for _, r := range routes {
		schema := r.Schema
		if schema == "" {
			schema = "-"
		}
		handler := r.Handler
		if handler == "" {
			handler = "echo"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Method, r.Pattern, schema, handler, r.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d routes\n", len(routes))
	return nil
}
