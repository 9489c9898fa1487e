// Package cmd provides CLI commands for semanticidxctl.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputJSON bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "semanticidxctl",
	Short: "semanticidxctl - operate the semantic index core",
	Long: `semanticidxctl is a command-line tool for administering the semantic
indexing and retrieval core directly, against the same configuration (data
directory, embedding provider, search engine) the service process uses.

Use semanticidxctl to:
  - Bulk-index or single-file-index artefact data directories
  - Run ad-hoc k-NN queries against an index
  - Create and restore search engine snapshots
  - Inspect the per-index pad-length registry`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(padlengthCmd)
}
