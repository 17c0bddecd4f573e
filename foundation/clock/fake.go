package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Scheduled functions run synchronously
// on the goroutine calling Advance or Set, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*fakeTimer
}

// NewFake constructs a fake clock starting at the specified time.
func NewFake(now time.Time) *Fake {
	return &Fake{
		now:    now,
		timers: make(map[uint64]*fakeTimer),
	}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// AfterFunc schedules fn to run once the fake time reaches now+d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := fakeTimer{
		clock:    f,
		id:       f.seq,
		deadline: f.now.Add(d),
		fn:       fn,
	}
	f.timers[t.id] = &t

	return &t
}

// Advance moves the fake time forward by d, running every function whose
// deadline falls inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// Set moves the fake time to the specified time, running every function
// whose deadline is at or before it. Functions scheduled while running are
// also honored if they fall inside the window.
func (f *Fake) Set(target time.Time) {
	for {
		f.mu.Lock()
		next := f.earliest(target)
		if next == nil {
			if target.After(f.now) {
				f.now = target
			}
			f.mu.Unlock()
			return
		}

		delete(f.timers, next.id)
		if next.deadline.After(f.now) {
			f.now = next.deadline
		}
		f.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of scheduled functions that have not run
// or been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.timers)
}

// earliest returns the timer with the smallest deadline not after target.
// Ties are broken by scheduling order.
func (f *Fake) earliest(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.deadline.After(target) {
			due = append(due, t)
		}
	}

	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})

	return due[0]
}

// =============================================================================

type fakeTimer struct {
	clock    *Fake
	id       uint64
	deadline time.Time
	fn       func()
}

// Stop prevents the function from running. It returns false if the function
// already ran or the timer was already stopped.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if _, exists := t.clock.timers[t.id]; !exists {
		return false
	}

	delete(t.clock.timers, t.id)
	return true
}
