// Package scheduler provides a cancellable repeating task. The task is
// decoupled from the work it runs so the work can be tested without timers.
package scheduler

import (
	"sync"
	"time"

	"github.com/ardanlabs/blockfeed/foundation/clock"
)

// Task runs a function on a fixed interval until paused or stopped.
type Task struct {
	clock    clock.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   clock.Timer
	epoch   uint64
	running bool
	stopped bool
}

// New constructs a task that calls fn every interval once started.
func New(clk clock.Clock, interval time.Duration, fn func()) *Task {
	return &Task{
		clock:    clk,
		interval: interval,
		fn:       fn,
	}
}

// Start begins ticking. The first call to fn happens one interval from now.
// Calling Start on a running or stopped task does nothing.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.stopped {
		return
	}

	t.running = true
	t.scheduleLocked()
}

// Pause stops future ticks. A call to fn that is already executing is
// allowed to complete.
func (t *Task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.haltLocked()
}

// Stop terminates the task permanently.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.haltLocked()
	t.stopped = true
}

// Running reports whether ticks are being scheduled.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

// =============================================================================

// scheduleLocked arms the timer for the next tick. The epoch lets a timer
// that fires after a pause or restart recognize it is stale.
func (t *Task) scheduleLocked() {
	epoch := t.epoch

	t.timer = t.clock.AfterFunc(t.interval, func() {
		t.mu.Lock()
		if !t.running || t.epoch != epoch {
			t.mu.Unlock()
			return
		}
		t.scheduleLocked()
		t.mu.Unlock()

		t.fn()
	})
}

func (t *Task) haltLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.epoch++
	t.running = false
}
