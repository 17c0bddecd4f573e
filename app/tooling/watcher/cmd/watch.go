package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feedsync"
	"github.com/ardanlabs/blockfeed/foundation/kvstore"
	"github.com/ardanlabs/blockfeed/foundation/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchInterval   time.Duration
	watchCapacity   int
	watchDwell      time.Duration
	watchOptimistic bool
	watchRows       int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the feed and print the merged view as it changes.",
	Long: `Poll the feed and print the merged view as it changes.

While running, type a command followed by enter:
  p  pause polling
  r  resume polling
  f  refresh now
  q  quit`,
	RunE: watchRun,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", feedsync.DefaultPollInterval, "Time between polls.")
	watchCmd.Flags().IntVar(&watchCapacity, "cap", feedsync.DefaultCapacity, "Maximum number of events kept.")
	watchCmd.Flags().DurationVar(&watchDwell, "dwell", feedsync.DefaultNewItemDwell, "How long new events stay highlighted.")
	watchCmd.Flags().BoolVar(&watchOptimistic, "optimistic", true, "Show cached events before the first fetch resolves.")
	watchCmd.Flags().IntVar(&watchRows, "rows", 20, "Number of events printed, 0 for all.")
}

func watchRun(cmd *cobra.Command, args []string) error {
	settings := cfg

	flags := cmd.Flags()
	if flags.Changed("interval") {
		settings.Interval = watchInterval
	}
	if flags.Changed("cap") {
		settings.Capacity = watchCapacity
	}
	if flags.Changed("dwell") {
		settings.Dwell = watchDwell
	}
	if flags.Changed("optimistic") {
		settings.Optimistic = watchOptimistic
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	log, err := logger.New("WATCHER", "stderr")
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(settings.Store, settings.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	// Changes arrive from timer goroutines as well as this one.
	var mu sync.Mutex
	out := cmd.OutOrStdout()
	onChange := func(snap feedsync.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		render(out, snap, watchRows)
	}

	syncer, err := newSyncer(settings, log, store, onChange)
	if err != nil {
		return err
	}
	defer syncer.Stop()

	log.Infow("watch", "status", "starting", "url", settings.URL, "store", settings.Store, "path", settings.StorePath)
	syncer.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	commands := readCommands(cmd.InOrStdin())

	for {
		select {
		case sig := <-shutdown:
			log.Infow("watch", "status", "stopping", "signal", sig)
			return nil

		case c, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}

			switch c {
			case "p":
				syncer.Pause()

			case "r":
				syncer.Resume()

			case "f":
				ctx, cancel := context.WithTimeout(context.Background(), settings.Timeout)
				err := syncer.Refresh(ctx)
				cancel()

				if err != nil && !errors.Is(err, feedsync.ErrSuperseded) {
					log.Errorw("watch", "status", "refresh", "ERROR", err)
				}

			case "q":
				log.Infow("watch", "status", "stopping")
				return nil
			}
		}
	}
}

// newSyncer constructs a syncer against the configured feed service.
func newSyncer(settings Config, log *zap.SugaredLogger, store kvstore.Store, onChange func(feedsync.Snapshot)) (*feedsync.Syncer, error) {
	return feedsync.New(feedsync.Config{
		Log:          log,
		Fetcher:      feedsync.NewHTTPFetcher(settings.URL, settings.Timeout),
		Store:        store,
		Capacity:     settings.Capacity,
		PollInterval: settings.Interval,
		NewItemDwell: settings.Dwell,
		Optimistic:   settings.Optimistic,
		OnChange:     onChange,
	})
}

// readCommands delivers the first letter of every non empty input line.
// The channel is closed when the input is exhausted.
func readCommands(r io.Reader) <-chan string {
	ch := make(chan string)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if line == "" {
				continue
			}
			ch <- line[:1]
		}
	}()

	return ch
}
