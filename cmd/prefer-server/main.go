// Prefer-server serves typed preference groups over HTTP and edits them from
// the command line.
//
// Usage:
//
//	prefer-server serve --config prefer.yaml
//	prefer-server keys
//	prefer-server get Settings:IsEnabled
//	prefer-server set Settings:IsEnabled true
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "prefer-server",
	Short: "Typed preference server",
	Long: `Serve and edit typed preferences declared in a YAML configuration.

Values live in the configured store (memory, sqlite, postgres or redis).
Settings can be overridden with PREFER_* environment variables or a .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(dumpCmd)
}
