package buffer

import (
	"sort"
	"sync"
	"testing"

	"github.com/gr-butler/homeweather/clock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const (
	hour = 3600
	day  = 86400
)

func TestCountWithinHourAndDay(t *testing.T) {
	log := NewEventLog(64)
	for _, ts := range []clock.Timestamp{10, 20, 3610, 3620} {
		log.Record(ts)
	}

	require.Equal(t, 2, log.CountWithin(hour, 3620))
	require.Equal(t, 4, log.CountWithin(day, 3620))
	require.Equal(t, uint64(4), log.Total())
}

func TestCountWithinEmptyLog(t *testing.T) {
	log := NewEventLog(8)
	require.Equal(t, 0, log.CountWithin(day, 100))
}

func TestCountWithinWindowEdges(t *testing.T) {
	log := NewEventLog(8)
	log.Record(100)
	log.Record(200)

	// the oldest edge is excluded, now is included
	require.Equal(t, 1, log.CountWithin(100, 200))
	require.Equal(t, 2, log.CountWithin(101, 200))
	require.Equal(t, 1, log.CountWithin(99, 200))
	require.Equal(t, 0, log.CountWithin(0, 200))
	// window larger than uptime clamps at zero
	require.Equal(t, 2, log.CountWithin(day, 250))
	// nothing newer than now is counted
	require.Equal(t, 0, log.CountWithin(day, 150))
}

func TestCountWithinAfterWrap(t *testing.T) {
	log := NewEventLog(4)
	for ts := clock.Timestamp(1); ts <= 10; ts++ {
		log.Record(ts)
	}

	require.Equal(t, uint64(10), log.Total())
	require.Equal(t, 4, log.CountWithin(day, 10))
	require.Equal(t, 2, log.CountWithin(2, 10))
}

func TestRecordConcurrentWithCount(t *testing.T) {
	log := NewEventLog(128)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ts := clock.Timestamp(1); ts <= 5000; ts++ {
			log.Record(ts)
		}
	}()
	for i := 0; i < 1000; i++ {
		require.LessOrEqual(t, log.CountWithin(day, 5000), log.Capacity())
	}
	wg.Wait()
	require.Equal(t, 128, log.CountWithin(day, 5000))
}

func TestCountWithinMatchesNaiveCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("window count equals events after now-window, capped at capacity", prop.ForAll(
		func(times []uint32, window uint32, capacity int) bool {
			if len(times) == 0 {
				return true
			}
			sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
			log := NewEventLog(capacity)
			for _, ts := range times {
				log.Record(clock.Timestamp(ts))
			}
			now := times[len(times)-1]
			var lower uint32
			if now > window {
				lower = now - window
			}
			want := 0
			for _, ts := range times {
				if ts > lower {
					want++
				}
			}
			if want > capacity {
				want = capacity
			}
			got := log.CountWithin(window, clock.Timestamp(now))
			return got == want && got <= log.Capacity()
		},
		gen.SliceOf(gen.UInt32Range(1, 200000)),
		gen.UInt32Range(0, 100000),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
