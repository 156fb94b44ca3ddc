package timerwheel

import "time"

// Clock supplies monotonic microseconds to the wheel. The production
// clock wraps the runtime monotonic reading; tests substitute a manual
// clock to step time deterministically.
type Clock interface {
	MonotonicUs() int64
}

type realClock struct {
	start time.Time
}

func newRealClock() *realClock {
	return &realClock{start: time.Now()}
}

func (c *realClock) MonotonicUs() int64 {
	return time.Since(c.start).Microseconds()
}
