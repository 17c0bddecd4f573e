// This program performs administrative tasks for the blockfeed client cache.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/blockfeed/app/tooling/admin/commands"
	"github.com/ardanlabs/blockfeed/foundation/kvstore/sqlite"
	"github.com/ardanlabs/blockfeed/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	if len(os.Args) < 3 {
		return errors.New("usage: admin <store-path> cache|clear|stats")
	}

	log.Infow("startup", "version", build, "store", os.Args[1], "command", os.Args[2])

	store, err := sqlite.Open(os.Args[1])
	if err != nil {
		return err
	}
	defer store.Close()

	return processCommands(os.Args, store)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, store *sqlite.SQLite) error {
	switch args[2] {
	case "cache":
		if err := commands.Cache(os.Stdout, store); err != nil {
			return fmt.Errorf("showing cache: %w", err)
		}
	case "clear":
		if err := commands.Clear(os.Stdout, store); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	case "stats":
		if err := commands.Stats(os.Stdout, store); err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args[2])
	}

	return nil
}
