// Package main is the entry point for the venue-discovery service and CLI.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command; configuration comes from the environment
// (and a .env file when present).
var rootCmd = &cobra.Command{
	Use:   "venue-discovery",
	Short: "Venue discovery and quality pipeline",
	Long: `venue-discovery finds venues for a destination across multiple sources,
filters them through quality control, optionally enhances them with an LLM and
ranks them into recommendations.

Run "serve" for the HTTP API or "recommend" for a one-off run from the shell.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
