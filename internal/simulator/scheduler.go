package simulator

import "time"

// Timer is a handle to a scheduled reply. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Callbacks run on their own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules on the runtime timer wheel.
type WallClock struct{}

// AfterFunc implements Scheduler.
func (WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
