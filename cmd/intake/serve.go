package main

import (
	"fmt"
	"os"

	"github.com/artpar/intake/bootstrap"
	"github.com/artpar/intake/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch server",
	Long: `Start the intake server.

The server will:
  - Load configuration from intake.yaml (or --config)
  - Or load configuration from INTAKE_* environment variables
  - Compile the route table and schema registry from the manifests
  - Dispatch requests: match, validate, invoke the route's handler
  - Hot-reload manifests on file changes and SIGHUP

Environment variables (for Docker deployments):
  INTAKE_ROUTES_FILE     - Routes manifest path (required)
  INTAKE_SCHEMA_DIR      - Schema manifest directory
  INTAKE_SERVER_PORT     - Server port (default: 8080)
  INTAKE_LOG_LEVEL       - Log level: debug, info, warn, error
  INTAKE_METRICS_ENABLED - Enable /metrics endpoint

Examples:
  intake serve
  intake serve --config /etc/intake/config.yaml
  intake serve --hot-reload=false

  # Docker (env vars only):
  INTAKE_ROUTES_FILE=/etc/intake/routes.yaml intake serve`,
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

	hasEnvConfig := config.HasEnvConfig()

	// No configuration at all
	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with a definitions section\n", cfgFile)
		fmt.Println("Option 2: Set INTAKE_ROUTES_FILE environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  INTAKE_ROUTES_FILE=routes.yaml intake serve")
		return nil
	}

	opts := bootstrap.Options{Version: version}

	// Create application
	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReloadOptions(cfgFile, opts)
	} else {
		// Load config (file with env overrides, or env-only)
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.NewWithOptions(cfg, opts)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
