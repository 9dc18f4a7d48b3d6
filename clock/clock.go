package clock

import (
	"sync/atomic"
	"time"
)

// Timestamp is whole seconds since boot.
type Timestamp uint32

const msPerSecond = 1000

// Clock turns a free running millisecond counter into a seconds counter that
// never goes backwards. The millisecond counter is 32 bits and wraps after
// ~49.7 days, all differences are taken modulo 2^32.
type Clock struct {
	millis    func() uint32
	last      uint32
	remainder uint64
	seconds   atomic.Uint32
}

// New creates a clock reading ms from the given source. A nil source uses the
// process uptime.
func New(source func() uint32) *Clock {
	if source == nil {
		source = Uptime()
	}
	c := &Clock{millis: source}
	c.last = source()
	return c
}

// Uptime returns a millisecond source counting from the moment it is called.
func Uptime() func() uint32 {
	boot := time.Now()
	return func() uint32 {
		return uint32(time.Since(boot).Milliseconds())
	}
}

// Advance adds elapsed milliseconds. Only the foreground loop calls this.
func (c *Clock) Advance(elapsedMs uint32) Timestamp {
	c.remainder += uint64(elapsedMs)
	if c.remainder >= msPerSecond {
		whole := c.remainder / msPerSecond
		c.remainder -= whole * msPerSecond
		c.seconds.Add(uint32(whole))
	}
	return c.Now()
}

// Update reads the source, advances by the time since the previous Update and
// returns the raw millisecond reading. It is the foreground loop's time source.
func (c *Clock) Update() uint32 {
	now := c.millis()
	elapsed := now - c.last
	c.last = now
	c.Advance(elapsed)
	return now
}

// Now is safe to call from any goroutine.
func (c *Clock) Now() Timestamp {
	return Timestamp(c.seconds.Load())
}

// Millis reads the underlying millisecond source directly.
func (c *Clock) Millis() uint32 {
	return c.millis()
}
