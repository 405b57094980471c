// Command linkhub serves LinkHub profile pages and the owner API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkhub/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "linkhub",
	Short: "LinkHub serves public link pages",
	Long: `LinkHub hosts one public page per username listing titled links.
Owners add, edit, reorder and delete links through the JSON API.

Configuration is read from LINKHUB_* environment variables.
Running linkhub without a subcommand is the same as "linkhub serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}
