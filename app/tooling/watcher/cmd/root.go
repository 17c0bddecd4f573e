// Package cmd contains the watcher app.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	feedURL   string
	storeKind string
	storePath string
	cfgPath   string

	// cfg holds the resolved settings once the persistent pre run has
	// merged the config file with the flags.
	cfg Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&feedURL, "url", "u", "http://localhost:3000", "Url of the feed service.")
	rootCmd.PersistentFlags().StringVarP(&storeKind, "store", "s", StoreSQLite, "Cache store: sqlite, disk or memory.")
	rootCmd.PersistentFlags().StringVarP(&storePath, "store-path", "p", "", "Path of the cache store. Defaults to the user cache dir.")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a yaml config file. Defaults to the user config dir.")
}

var rootCmd = &cobra.Command{
	Use:               "watcher",
	Short:             "Watch the blockfeed event feed",
	SilenceUsage:      true,
	PersistentPreRunE: resolveConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig loads the config file and applies any flag the user set
// explicitly on top of it.
func resolveConfig(cmd *cobra.Command, args []string) error {
	loaded, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		loaded.URL = feedURL
	}
	if flags.Changed("store") {
		loaded.Store = storeKind
	}
	if flags.Changed("store-path") {
		loaded.StorePath = storePath
	}

	if loaded.StorePath == "" {
		loaded.StorePath = DefaultStorePath(loaded.Store)
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cfg = loaded
	return nil
}
