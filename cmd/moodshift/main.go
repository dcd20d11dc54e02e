// MoodShift turns short pieces of user text into supportive spoken replies.
//
// Usage:
//
//	moodshift serve [--config /path/to/moodshift.yaml]
//	moodshift seed --file settings.toml
//	moodshift seed --defaults
//	moodshift version
//
// @title        MoodShift API
// @version      1.0
// @description  Supportive replies rendered to speech, with content-addressed audio caching.
// @BasePath     /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "moodshift",
		Short:         "Supportive replies rendered to speech",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/moodshift.local.yaml)")

	rootCmd.AddCommand(
		newServeCmd(&configFile),
		newSeedCmd(&configFile),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "moodshift %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
