// Package cmd contains the replygate CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/replygate/replygate/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "replygate",
	Short: "Debounced auto-reply daemon for messaging accounts",
	Long: "Replygate watches a messaging account's incoming direct messages and answers each " +
		"burst with a single generated reply once the contact goes quiet. A per-contact " +
		"cooldown keeps it from getting into reply loops with other bots.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $REPLYGATE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd(),
		journalCmd(),
		migrateCmd(),
		onboardCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("replygate %s\n", Version)
			},
		},
	)
}

// resolveConfigPath picks the config file: the --config flag wins, then
// $REPLYGATE_CONFIG, then config.json in the working directory.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("REPLYGATE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}
