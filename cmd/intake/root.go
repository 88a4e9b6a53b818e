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
	Use:   "intake",
	Short: "Typed request validation and dispatch in front of your handlers",
	Long: `intake matches incoming requests against a route table, validates and
coerces their parameters against declared schemas, and hands typed
parameter bundles to handlers. Routes and schemas are YAML manifests
that hot-reload while the server runs.

Quick start:
  intake validate   # Check config and manifests
  intake serve      # Start the server

Inspection:
  intake routes     # Show the compiled route table
  intake version    # Print version information`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "intake.yaml", "config file path")
}
