package engine

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers.
// Clock is the production implementation; tests may supply a resettable one.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock stamping notifications.
//
// Every delivered Notification carries a strictly increasing Seq from this
// clock, so subscribers and golden traces observe a total order that does
// not depend on wall time.
//
// Clock is safe for concurrent use, although a Cache drives it from one
// goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
