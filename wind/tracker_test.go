package wind

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func Test_tracker_Speed(t *testing.T) {
	tr := NewTracker()

	require.Equal(t, float64(0), tr.Speed(0))

	tr.Tick(1000)
	tr.Tick(2000)
	// one tick per second
	require.InDelta(t, MphPerTick, tr.Speed(2500), 1e-9)

	tr.Tick(2250)
	require.InDelta(t, MphPerTick*4, tr.Speed(2300), 1e-9)

	interval, last := tr.Interval()
	require.Equal(t, uint32(250), interval)
	require.Equal(t, uint32(2250), last)
}

func Test_tracker_SpeedGoesStale(t *testing.T) {
	tr := NewTracker()
	tr.Tick(10000)
	tr.Tick(10100)
	require.Greater(t, tr.Speed(10100), 0.0)

	require.Greater(t, tr.Speed(10100+StaleMs), 0.0)
	require.Equal(t, float64(0), tr.Speed(10101+StaleMs))
}

func Test_tracker_ZeroIntervalKeepsLastSpeed(t *testing.T) {
	tr := NewTracker()
	tr.Tick(1000)
	tr.Tick(1500)
	first := tr.Speed(1600)
	require.InDelta(t, MphPerTick*2, first, 1e-9)

	// two edges in the same millisecond
	tr.Tick(1500)
	require.Equal(t, first, tr.Speed(1600))
}

func Test_tracker_TickAcrossMillisWrap(t *testing.T) {
	tr := NewTracker()
	tr.Tick(math.MaxUint32 - 249)
	tr.Tick(750) // 1000ms later after wrapping
	require.InDelta(t, MphPerTick, tr.Speed(800), 1e-9)
}

func Test_tracker_StaleIsAlwaysZero(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("speed is zero once the last tick is older than the stale limit", prop.ForAll(
		func(ticks []uint32, start uint32, idle uint32) bool {
			tr := NewTracker()
			now := start
			for _, d := range ticks {
				now += d
				tr.Tick(now)
				tr.Speed(now)
			}
			return tr.Speed(now+StaleMs+1+idle) == 0
		},
		gen.SliceOf(gen.UInt32Range(0, 3000)),
		gen.UInt32(),
		gen.UInt32Range(0, 1<<30),
	))

	properties.TestingRun(t)
}
