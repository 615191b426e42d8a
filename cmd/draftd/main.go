// Draftd is a daemon that turns natural-language input into schema-valid
// product artifacts (vision, roadmap, story) through iterative generation
// and deterministic correction.
//
// Usage:
//
//	# Start the HTTP daemon with defaults
//	draftd serve
//
//	# Serve the engine as MCP tools over stdio
//	draftd mcp
//
//	# Configure via file and environment
//	draftd serve --config /etc/draftd/config.yaml
//	DRAFTD_SERVER_PORT=9000 draftd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "draftd",
	Short: "Iterative artifact refinement daemon",
	Long: `draftd turns unstructured natural-language input into progressively
refined, schema-valid product artifacts through repeated rounds of
generation and deterministic correction.`,
	Version: version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("draftd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
