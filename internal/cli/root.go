// Package cli defines the costargen command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/costargen/costargen/internal/buildinfo"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "costargen",
	Short: "COSTAR prompt generation service",
	Long: `costargen turns six COSTAR parameters into a polished prompt by
calling ranked AI providers with automatic fallback. Running with no
subcommand starts the HTTP server.`,
	Run: func(c *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(c *cobra.Command, args []string) {
		fmt.Printf("costargen %s (%s)\n", buildinfo.Version, buildinfo.Commit)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
