// Package clock abstracts time so code that schedules work can be driven
// deterministically in tests.
package clock

import "time"

// Timer represents a single scheduled call that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock represents the behavior required to read the time and schedule
// a function to run after a duration.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by the time package.
type Real struct{}

// New returns the real clock.
func New() Real {
	return Real{}
}

// Now returns the current local time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc waits for the duration to elapse and then calls f in its
// own goroutine.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
