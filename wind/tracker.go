package wind

import (
	"sync/atomic"
)

const (
	// 1 tick/second = 1.429 MPH wind
	MphPerTick float64 = 1.429
	// StaleMs is how long without a tick before the cups are taken to be still.
	StaleMs uint32 = 5000
)

// Tracker holds the interval between the last two anemometer ticks. The GPIO
// goroutine calls Tick, the foreground loop calls Speed.
//
// interval and last tick time share one 64 bit word so Speed always sees a
// pair written by the same Tick.
type Tracker struct {
	sample    atomic.Uint64
	k         float64
	staleMs   uint32
	lastSpeed float64 // foreground only
}

func NewTracker() *Tracker {
	return NewTrackerWith(MphPerTick*1000, StaleMs)
}

// NewTrackerWith allows a different calibration. k is speed × interval in ms,
// so speed = k / interval.
func NewTrackerWith(k float64, staleMs uint32) *Tracker {
	return &Tracker{k: k, staleMs: staleMs}
}

func pack(interval, last uint32) uint64 {
	return uint64(interval)<<32 | uint64(last)
}

func unpack(v uint64) (interval, last uint32) {
	return uint32(v >> 32), uint32(v)
}

// Tick records a pulse at nowMs. Single writer.
func (t *Tracker) Tick(nowMs uint32) {
	_, last := unpack(t.sample.Load())
	t.sample.Store(pack(nowMs-last, nowMs))
}

// Interval returns the last inter-tick duration and the time of the last tick.
func (t *Tracker) Interval() (interval, lastTick uint32) {
	return unpack(t.sample.Load())
}

// Speed is the instantaneous speed at nowMs. It only changes when a tick
// arrives, or drops to zero once the last tick is older than the stale limit.
func (t *Tracker) Speed(nowMs uint32) float64 {
	interval, last := unpack(t.sample.Load())
	if nowMs-last > t.staleMs {
		t.lastSpeed = 0
		return 0
	}
	if interval == 0 {
		return t.lastSpeed
	}
	t.lastSpeed = t.k / float64(interval)
	return t.lastSpeed
}
