// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/blockfeed/business/core/feed"
	"github.com/ardanlabs/blockfeed/business/core/feedsync"
	"github.com/ardanlabs/blockfeed/foundation/kvstore"
)

// Cache prints the events held in the cached snapshot.
func Cache(w io.Writer, store kvstore.Store) error {
	evts, err := load(store)
	if err != nil {
		return err
	}

	if evts == nil {
		fmt.Fprintln(w, "no cached snapshot")
		return nil
	}

	for _, evt := range evts {
		status := "ok"
		if err := evt.Validate(); err != nil {
			status = "invalid"
		}

		fmt.Fprintf(w, "%-7s %s  %-9s %-14s %-20s %s\n", status, evt.Date.Format("2006-01-02 15:04:05"), evt.Chain, evt.Category, evt.ID, evt.Title)
	}

	return nil
}

// Clear deletes the cached snapshot.
func Clear(w io.Writer, store kvstore.Store) error {
	if err := store.Delete(feedsync.DefaultCacheKey); err != nil {
		return err
	}

	fmt.Fprintln(w, "cache cleared")
	return nil
}

// load decodes the cached snapshot. A missing snapshot returns nil events.
func load(store kvstore.Store) ([]feed.Event, error) {
	data, err := store.Get(feedsync.DefaultCacheKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var evts []feed.Event
	if err := json.Unmarshal(data, &evts); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	return evts, nil
}
