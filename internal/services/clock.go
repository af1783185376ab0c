package services

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Used by tests and by operator
// runs that evaluate "as of" a given time.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
