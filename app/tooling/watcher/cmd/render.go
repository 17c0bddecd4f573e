package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/ardanlabs/blockfeed/business/core/feedsync"
)

// render writes the snapshot as a header line followed by one line per
// event. New events are flagged with a star.
func render(w io.Writer, snap feedsync.Snapshot, rows int) {
	var flags []string
	if snap.Loading {
		flags = append(flags, "loading")
	}
	if snap.FromCache {
		flags = append(flags, "cached")
	}
	if snap.Err != nil {
		flags = append(flags, "error: "+snap.Err.Error())
	}

	header := fmt.Sprintf("== %s  events[%d] new[%d]", snap.State, len(snap.Items), len(snap.NewIDs))
	if len(flags) > 0 {
		header += "  (" + strings.Join(flags, ", ") + ")"
	}
	fmt.Fprintln(w, header)

	for i, evt := range snap.Items {
		if rows > 0 && i == rows {
			fmt.Fprintf(w, "   ... %d more\n", len(snap.Items)-rows)
			break
		}

		mark := " "
		if snap.IsNew(evt.ID) {
			mark = "*"
		}

		fmt.Fprintf(w, "%s %s  %-9s %-14s %s\n", mark, evt.Date.Format("15:04:05"), evt.Chain, evt.Category, evt.Title)
	}
}
