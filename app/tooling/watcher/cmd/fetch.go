package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/blockfeed/foundation/logger"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the feed once and merge it into the cache.",
	RunE:  fetchRun,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func fetchRun(cmd *cobra.Command, args []string) error {
	log, err := logger.New("WATCHER", "stderr")
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(cfg.Store, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	settings := cfg
	settings.Optimistic = true

	syncer, err := newSyncer(settings, log, store, nil)
	if err != nil {
		return err
	}
	defer syncer.Stop()

	syncer.HydrateFromCache()

	ctx, cancel := context.WithTimeout(context.Background(), settings.Timeout)
	defer cancel()

	if err := syncer.FetchAndMerge(ctx); err != nil {
		return fmt.Errorf("fetching feed: %w", err)
	}

	snap := syncer.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "added %d new events, %d cached\n", len(snap.NewIDs), len(snap.Items))

	return nil
}
