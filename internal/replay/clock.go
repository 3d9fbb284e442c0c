package replay

import (
	"sync/atomic"

	"cpamm/internal/amm"
)

// Clock reports the timestamp of the operation being replayed, falling back
// to a base clock for operations that carry none.
type Clock struct {
	base     amm.Clock
	override atomic.Uint64
}

func NewClock(base amm.Clock) *Clock {
	if base == nil {
		base = amm.SystemClock
	}
	return &Clock{base: base}
}

func (c *Clock) Now() uint64 {
	if ts := c.override.Load(); ts != 0 {
		return ts
	}
	return c.base.Now()
}

// set pins Now to ts until the next call; zero restores the base clock.
func (c *Clock) set(ts uint64) {
	c.override.Store(ts)
}
