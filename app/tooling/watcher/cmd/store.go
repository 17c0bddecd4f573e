package cmd

import (
	"fmt"

	"github.com/ardanlabs/blockfeed/foundation/kvstore"
	"github.com/ardanlabs/blockfeed/foundation/kvstore/disk"
	"github.com/ardanlabs/blockfeed/foundation/kvstore/memory"
	"github.com/ardanlabs/blockfeed/foundation/kvstore/sqlite"
)

// Set of supported cache stores.
const (
	StoreSQLite = "sqlite"
	StoreDisk   = "disk"
	StoreMemory = "memory"
)

// openStore constructs the cache store of the specified kind.
func openStore(kind string, path string) (kvstore.Store, error) {
	switch kind {
	case StoreSQLite:
		return sqlite.Open(path)
	case StoreDisk:
		return disk.New(path)
	case StoreMemory:
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown store %q", kind)
}
