package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/foundation/kvstore"
)

// Keyer represents a store that can list its keys.
type Keyer interface {
	kvstore.Store
	Keys() (map[string]time.Time, error)
}

// Stats prints the stored keys and a breakdown of the cached snapshot by
// chain and category.
func Stats(w io.Writer, store Keyer) error {
	keys, err := store.Keys()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(keys))
	for key := range keys {
		names = append(names, key)
	}
	sort.Strings(names)

	for _, key := range names {
		fmt.Fprintf(w, "Key: %s  Updated: %s\n", key, keys[key].Format(time.RFC3339))
	}

	evts, err := load(store)
	if err != nil {
		return err
	}

	byChain := make(map[string]int)
	byCategory := make(map[string]int)
	invalid := 0
	for _, evt := range evts {
		byChain[evt.Chain]++
		byCategory[evt.Category]++
		if err := evt.Validate(); err != nil {
			invalid++
		}
	}

	fmt.Fprintf(w, "\nEvents: %d  Invalid: %d\n", len(evts), invalid)
	if len(evts) > 0 {
		newest := evts[0].Date
		oldest := evts[len(evts)-1].Date
		fmt.Fprintf(w, "Newest: %s  Oldest: %s\n", newest.Format(time.RFC3339), oldest.Format(time.RFC3339))
	}

	for _, chain := range feed.Chains() {
		fmt.Fprintf(w, "Chain: %-9s %d\n", chain, byChain[chain])
	}
	for _, category := range feed.Categories() {
		fmt.Fprintf(w, "Category: %-14s %d\n", category, byCategory[category])
	}

	return nil
}
