package buffer

import (
	"sync/atomic"

	"github.com/gr-butler/homeweather/clock"
)

// EventLog is a fixed size ring of event timestamps. One goroutine records
// (the GPIO edge watcher), the foreground loop counts. No locks are taken on
// either side; every slot, the cursor and the total are atomics.
//
// An empty slot holds 0. A real event at second 0 looks the same, which only
// matters during the first second after boot.
type EventLog struct {
	slots  []atomic.Uint32
	cursor atomic.Uint32
	total  atomic.Uint64
}

func NewEventLog(capacity int) *EventLog {
	if capacity < 1 {
		capacity = 1
	}
	return &EventLog{slots: make([]atomic.Uint32, capacity)}
}

// Record stores ts at the cursor and moves the cursor on. Single writer only.
func (l *EventLog) Record(ts clock.Timestamp) {
	i := l.cursor.Load()
	l.slots[i].Store(uint32(ts))
	i++
	if int(i) == len(l.slots) {
		i = 0
	}
	l.cursor.Store(i)
	l.total.Add(1)
}

// Total is the number of events ever recorded, including overwritten ones.
func (l *EventLog) Total() uint64 {
	return l.total.Load()
}

func (l *EventLog) Capacity() int {
	return len(l.slots)
}

// CountWithin counts the events in (now-window, now], newest first. The scan
// stops at the first empty slot or the first event outside the window, so it
// relies on events being recorded in time order.
func (l *EventLog) CountWithin(window uint32, now clock.Timestamp) int {
	if l.total.Load() == 0 {
		return 0
	}
	var lower uint32
	if uint32(now) > window {
		lower = uint32(now) - window
	}
	size := len(l.slots)
	i := int(l.cursor.Load())
	count := 0
	for n := 0; n < size; n++ {
		i--
		if i < 0 {
			i = size - 1
		}
		v := l.slots[i].Load()
		if v == 0 || v <= lower || v > uint32(now) {
			break
		}
		count++
	}
	return count
}
