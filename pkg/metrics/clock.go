package metrics

import (
	"sync/atomic"
	"time"
)

// Clock supplies monotonic nanosecond timestamps for sample metadata. The
// engine is correct under any implementation, including a plain counter.
type Clock interface {
	Now() int64
}

// NewMonotonicClock returns the default clock: nanoseconds elapsed since
// the clock was created, backed by the runtime's monotonic reading.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

type monotonicClock struct {
	start time.Time
}

func (c *monotonicClock) Now() int64 {
	return int64(time.Since(c.start))
}

// CounterClock is a deterministic Clock for tests: every Now call advances
// it by one.
type CounterClock struct {
	n atomic.Int64
}

func NewCounterClock() *CounterClock {
	return &CounterClock{}
}

func (c *CounterClock) Now() int64 {
	return c.n.Add(1)
}

// Advance moves the clock forward by d without producing a reading.
func (c *CounterClock) Advance(d int64) {
	c.n.Add(d)
}
