// Package clock abstracts wall-clock access so time-sensitive logic
// (numbering, paid timestamps, overdue checks) stays testable.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock returns the real time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed is a test clock pinned to a single instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
