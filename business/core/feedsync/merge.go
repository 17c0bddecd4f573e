package feedsync

import (
	"slices"

	"github.com/ardanlabs/blockfeed/business/core/feed"
)

// Merge combines a freshly fetched list with the current list. Incoming
// events whose id is already known are dropped. When nothing is new the
// current list is returned untouched along with a nil added list.
// Otherwise the current events are ordered newest first by date, the new
// events are placed ahead of them in the order they arrived, and the tail
// is trimmed so the result holds at most capacity events.
func Merge(current []feed.Event, incoming []feed.Event, capacity int) (merged []feed.Event, added []feed.Event) {
	known := make(map[string]struct{}, len(current)+len(incoming))
	for _, evt := range current {
		known[evt.ID] = struct{}{}
	}

	for _, evt := range incoming {
		if _, exists := known[evt.ID]; exists {
			continue
		}
		known[evt.ID] = struct{}{}
		added = append(added, evt)
	}

	if len(added) == 0 {
		return current, nil
	}

	sorted := slices.Clone(current)
	slices.SortStableFunc(sorted, func(a, b feed.Event) int {
		return b.Date.Compare(a.Date)
	})

	merged = make([]feed.Event, 0, len(added)+len(sorted))
	merged = append(merged, added...)
	merged = append(merged, sorted...)

	if capacity > 0 && len(merged) > capacity {
		merged = merged[:capacity]
	}

	return merged, added
}
