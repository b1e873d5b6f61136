// Package main provides the composer CLI for working with composition files
// outside the API server.
package main

import (
	"fmt"
	"os"

	"assetcomposer/internal/logger"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "composer",
	Short: "Validate, import and export asset composition files",
	Long: `composer works with the JSON files produced by the Asset Composer
export endpoint. It checks files offline and moves compositions between a
file and the database configured through the usual environment variables.

All commands print JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
