package engine

import "time"

// Clock supplies wall-clock time for execution timing.
// Tests substitute a deterministic implementation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
