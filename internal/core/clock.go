package core

import "time"

// Clock abstracts wall-clock time. Production code uses SystemClock; backtests
// replace it with a replay clock so every KB/quote query stays bounded by the
// simulated "now".
type Clock interface {
	Now() time.Time
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// SystemClock returns the real wall clock.
func SystemClock() Clock {
	return clockFunc(time.Now)
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return clockFunc(func() time.Time { return t })
}

// ClockFunc adapts a function to a Clock.
func ClockFunc(f func() time.Time) Clock {
	return clockFunc(f)
}
