package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gr-butler/homeweather/buffer"
	"github.com/gr-butler/homeweather/clock"
	"github.com/gr-butler/homeweather/data"
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/led"
	"github.com/gr-butler/homeweather/network"
	"github.com/gr-butler/homeweather/sensors"
	"github.com/gr-butler/homeweather/telemetry"
	"github.com/gr-butler/homeweather/wind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAtmosphere struct {
	err error
}

func (f fakeAtmosphere) Read() (sensors.TemperatureC, sensors.PressurehPa, sensors.RelHumidity, error) {
	if f.err != nil {
		return 0, 0, 0, f.err
	}
	return 11.25, 1013.2, 81, nil
}

type fakeVolts struct {
	v   float64
	err error
}

func (f fakeVolts) Volts() (float64, error) {
	return f.v, f.err
}

type fakePublisher struct {
	lock    sync.Mutex
	got     []telemetry.Reading
	err     error
	block   chan struct{} // when set, Publish waits for it to close
	entered atomic.Int32
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(_ context.Context, r telemetry.Reading) error {
	f.entered.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.got = append(f.got, r)
	return f.err
}

func (f *fakePublisher) published() []telemetry.Reading {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]telemetry.Reading(nil), f.got...)
}

type fakeNetwork struct {
	lock  sync.Mutex
	up    bool
	calls int
}

func (f *fakeNetwork) Connected(context.Context) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.up
}

func (f *fakeNetwork) Associate(context.Context, string, string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	f.up = true
	return nil
}

func (f *fakeNetwork) associations() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

// newTestStation has every sensor faked and a millisecond source the test
// moves by hand.
func newTestStation(t *testing.T) (*weatherstation, *uint32) {
	ms := new(uint32)
	w := &weatherstation{
		args:         env.NoArgs(),
		clock:        clock.New(func() uint32 { return *ms }),
		rainLog:      buffer.NewEventLog(env.RainLogCapacity),
		tracker:      wind.NewTracker(),
		resolver:     wind.DefaultResolver(),
		atm:          fakeAtmosphere{},
		vane:         fakeVolts{v: 2.0},
		battery:      fakeVolts{v: 3.9},
		speeds:       buffer.NewBuffer(env.GustSamples),
		batteryAvg:   buffer.NewBuffer(env.SamplesPerReport),
		data:         data.CreateWeatherData(),
		rainLed:      led.NewLED("Rain", "no-such-pin"),
		heartbeatLed: led.NewLED("Heartbeat", "no-such-pin"),
	}
	t.Cleanup(w.rainLed.Close)
	t.Cleanup(w.heartbeatLed.Close)
	return w, ms
}

// startUploader runs an uploader for the station until the test ends.
func startUploader(t *testing.T, w *weatherstation, pub telemetry.Publisher, link *network.Link) {
	ctx, cancel := context.WithCancel(context.Background())
	w.uploader = newUploader(pub, link)
	done := make(chan struct{})
	go func() {
		w.uploader.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRainTotalsHourAndDay(t *testing.T) {
	w, _ := newTestStation(t)
	for _, ts := range []clock.Timestamp{10, 20, 3610, 3620} {
		w.rainLog.Record(ts)
	}
	w.clock.Advance(3620 * 1000)

	hour, day := w.rainTotals()
	assert.InDelta(t, 0.71, hour, 1e-9) // 2 tips
	assert.InDelta(t, 1.41, day, 1e-9)  // 4 tips
	assert.Equal(t, uint64(4), w.lastTips)
}

func TestTipsToMM(t *testing.T) {
	assert.Equal(t, 0.0, tipsToMM(0))
	assert.InDelta(t, 0.35, tipsToMM(1), 1e-9)
	assert.InDelta(t, 3.54, tipsToMM(10), 1e-9)
}

func TestSampleBuildsReading(t *testing.T) {
	w, _ := newTestStation(t)
	w.tracker.Tick(1000)
	w.tracker.Tick(2000)

	w.sample(2500)

	r, ok := w.data.Latest()
	require.True(t, ok)
	assert.InDelta(t, 1.429, r.WindSpeedMph, 1e-9)
	assert.InDelta(t, 1.429, r.WindGustMph, 1e-9)
	assert.Equal(t, 22.5, r.WindDirection)
	assert.Equal(t, 11.25, r.TemperatureC)
	assert.Equal(t, 1013.2, r.PressureHPa)
	assert.Equal(t, 81.0, r.Humidity)
	assert.InDelta(t, 3.9, r.BatteryVolts, 1e-9)
	assert.Equal(t, 0.0, r.RainHourMM)
	assert.False(t, r.Time.IsZero())
}

func TestSampleWithoutSensors(t *testing.T) {
	w, _ := newTestStation(t)
	w.atm = fakeAtmosphere{err: sensors.ErrNoSensor}
	w.vane = (*sensors.AnalogInput)(nil)
	w.battery = fakeVolts{err: errors.New("i2c: nack")}

	w.sample(1000)

	r, ok := w.data.Latest()
	require.True(t, ok)
	assert.Equal(t, 0.0, r.TemperatureC)
	assert.Equal(t, 0.0, r.PressureHPa)
	assert.Equal(t, 0.0, r.Humidity)
	assert.Equal(t, 0.0, r.WindDirection)
	assert.Equal(t, 0.0, r.BatteryVolts)
	assert.Equal(t, 0.0, r.WindSpeedMph)
}

func TestWindGustOutlivesStaleSpeed(t *testing.T) {
	w, _ := newTestStation(t)
	w.tracker.Tick(1000)
	w.tracker.Tick(1500)

	speed, gust := w.windSpeed(2000)
	assert.InDelta(t, 2.858, speed, 1e-9)
	assert.InDelta(t, 2.858, gust, 1e-9)

	// no ticks for longer than the stale limit
	speed, gust = w.windSpeed(1500 + wind.StaleMs + 1)
	assert.Equal(t, 0.0, speed)
	assert.InDelta(t, 2.858, gust, 1e-9)

	for i := 0; i < env.GustSamples; i++ {
		_, gust = w.windSpeed(20000)
	}
	assert.Equal(t, 0.0, gust)
}

func TestReportReconnectsThenPublishes(t *testing.T) {
	w, _ := newTestStation(t)
	pub := &fakePublisher{}
	wifi := &fakeNetwork{}
	startUploader(t, w, pub, network.NewLink(wifi, wifi, "home", "secret", 0))

	w.sample(1000)
	w.report()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, time.Millisecond)
	latest, _ := w.data.Latest()
	assert.Equal(t, latest, pub.published()[0])
	assert.Equal(t, 1, wifi.associations())
}

func TestReportWithoutSamples(t *testing.T) {
	w, _ := newTestStation(t)
	w.uploader = newUploader(&fakePublisher{}, nil)

	w.report()
	assert.Empty(t, w.uploader.pending)
}

func TestReportTestMode(t *testing.T) {
	w, _ := newTestStation(t)
	w.uploader = newUploader(&fakePublisher{}, nil)
	w.testMode = true

	w.sample(1000)
	w.report()
	assert.Empty(t, w.uploader.pending)
}

func TestUploaderKeepsNewestReading(t *testing.T) {
	u := newUploader(&fakePublisher{}, nil)
	older := telemetry.Reading{Time: time.Unix(100, 0), RainDayMM: 1}
	newer := telemetry.Reading{Time: time.Unix(160, 0), RainDayMM: 2}

	u.Offer(older)
	u.Offer(newer)

	require.Len(t, u.pending, 1)
	assert.Equal(t, newer, <-u.pending)
}

func TestUploaderContinuesAfterPublishFailure(t *testing.T) {
	w, _ := newTestStation(t)
	pub := &fakePublisher{err: errors.New("boom")}
	startUploader(t, w, pub, nil)

	w.sample(1000)
	w.report()
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, time.Millisecond)
	w.report()
	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, time.Millisecond)
}

func TestUploaderGivesUpOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	u := newUploader(pub, network.NewLink(&fakeNetwork{}, failingAssociator{}, "home", "secret", 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u.send(ctx, telemetry.Reading{})
	assert.Empty(t, pub.published())

	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("uploader did not stop")
	}
}

type failingAssociator struct{}

func (failingAssociator) Associate(context.Context, string, string) error {
	return errors.New("no carrier")
}

func TestScheduleDrivesStation(t *testing.T) {
	w, ms := newTestStation(t)
	pub := &fakePublisher{}
	startUploader(t, w, pub, nil)
	sched := w.schedule()

	*ms = 1999
	assert.Equal(t, 0, sched.Poll(w.clock.Update()))

	*ms = 2000
	assert.Equal(t, 1, sched.Poll(w.clock.Update()))
	assert.Equal(t, 1, w.data.Samples())

	// sample, heartbeat and report all due
	*ms = 60000
	assert.Equal(t, 3, sched.Poll(w.clock.Update()))
	assert.Equal(t, clock.Timestamp(60), w.clock.Now())
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, time.Millisecond)
}

func TestSamplingContinuesWhilePublishIsStuck(t *testing.T) {
	w, ms := newTestStation(t)
	pub := &fakePublisher{block: make(chan struct{})}
	startUploader(t, w, pub, nil)
	t.Cleanup(func() { close(pub.block) })
	sched := w.schedule()

	*ms = 60000
	assert.Equal(t, 3, sched.Poll(w.clock.Update()))
	require.Eventually(t, func() bool { return pub.entered.Load() == 1 }, time.Second, time.Millisecond)

	// the publish never returns, the foreground keeps sampling and the clock
	// keeps moving for the rain log
	for _, at := range []uint32{62000, 64000, 66000} {
		*ms = at
		assert.Equal(t, 1, sched.Poll(w.clock.Update()))
	}
	assert.Equal(t, 4, w.data.Samples())
	assert.Equal(t, clock.Timestamp(66), w.clock.Now())

	w.rainLog.Record(w.clock.Now())
	hour, _ := w.rainTotals()
	assert.InDelta(t, 0.35, hour, 1e-9)

	// the next report queues behind the stuck one without blocking
	*ms = 120000
	assert.Equal(t, 3, sched.Poll(w.clock.Update()))
	assert.Len(t, w.uploader.pending, 1)
	assert.Empty(t, pub.published())
}

func TestStatusHandler(t *testing.T) {
	w, _ := newTestStation(t)
	w.rainLog.Record(1)
	w.sample(1000)

	rec := httptest.NewRecorder()
	w.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var wd webdata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wd))
	assert.Equal(t, 1, wd.Samples)
	assert.Equal(t, uint64(1), wd.RainTips)
	assert.Equal(t, 22.5, wd.WindDir)
	assert.Equal(t, "NNE", wd.WindCompass)
	assert.Equal(t, 11.25, wd.Temperature)
	assert.InDelta(t, 3.9, wd.BatteryLast, 1e-9)
	assert.NotEmpty(t, wd.SampleTime)
}
