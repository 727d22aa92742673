package service

import "time"

// Clock supplies the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// utcNow is the persisted form of the current instant. Postgres keeps
// microseconds, so truncating here makes in-memory and stored values equal.
func utcNow(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}
