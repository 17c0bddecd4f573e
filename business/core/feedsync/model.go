package feedsync

import (
	"errors"

	"github.com/ardanlabs/blockfeed/business/core/feed"
)

// Set of error variables for the fetch and merge workflow.
var (
	ErrTransport  = errors.New("transport failure")
	ErrStatus     = errors.New("unexpected response status")
	ErrParse      = errors.New("malformed response")
	ErrSuperseded = errors.New("fetch superseded")
	ErrStopped    = errors.New("syncer stopped")
)

// State represents where the syncer is in its lifecycle.
type State int

// Set of states the syncer moves through.
const (
	StateIdle State = iota
	StateHydrating
	StateFetching
	StateMerging
	StatePolling
	StatePaused
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateHydrating: "hydrating",
	StateFetching:  "fetching",
	StateMerging:   "merging",
	StatePolling:   "polling",
	StatePaused:    "paused",
}

// String implements the fmt.Stringer interface.
func (s State) String() string {
	if name, exists := stateNames[s]; exists {
		return name
	}
	return "unknown"
}

// Snapshot is a point in time copy of what a presentation layer needs.
type Snapshot struct {
	State     State
	Items     []feed.Event
	NewIDs    map[string]struct{}
	FromCache bool
	Loading   bool
	Err       error
}

// IsNew reports whether the event is inside its new item dwell window.
func (s Snapshot) IsNew(id string) bool {
	_, exists := s.NewIDs[id]
	return exists
}
