package engine

import "sync/atomic"

// Clock numbers recomputes. Each recompute takes the next seq, which orders
// log lines and spans without wall time; Current is the number of recomputes
// run so far. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
