package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/business/core/feedsync"
	"github.com/ardanlabs/blockfeed/foundation/kvstore"
	"github.com/spf13/cobra"
)

var cacheRows int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the cached snapshot.",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached snapshot.",
	RunE:  cacheShowRun,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached snapshot.",
	RunE:  cacheClearRun,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	cacheShowCmd.Flags().IntVar(&cacheRows, "rows", 0, "Number of events printed, 0 for all.")
}

func cacheShowRun(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg.Store, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	data, err := store.Get(feedsync.DefaultCacheKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			fmt.Fprintln(out, "no cached snapshot")
			return nil
		}
		return err
	}

	var evts []feed.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	invalid := 0
	for _, evt := range evts {
		if err := evt.Validate(); err != nil {
			invalid++
		}
	}

	render(out, feedsync.Snapshot{State: feedsync.StateIdle, Items: evts, FromCache: true}, cacheRows)
	if invalid > 0 {
		fmt.Fprintf(out, "%d invalid events, the snapshot will be discarded on the next load\n", invalid)
	}

	return nil
}

func cacheClearRun(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg.Store, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.Delete(feedsync.DefaultCacheKey); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}
