package tasks

import "time"

// Clock supplies the current time. Injected so generation windows, overdue
// checks and the sweeper are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
