package schedule

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// FiresTotal counts timer firings by timer name. Registered by main.
var FiresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_fires_total",
		Help: "Number of times each periodic timer has fired",
	},
	[]string{"timer"},
)

// Timer fires fn whenever period ms have passed since it last fired. Firing
// restarts the period from the time it fired, so a late poll pushes every
// later firing back as well.
type Timer struct {
	Name     string
	Period   uint32
	lastFire uint32
	fn       func(now uint32)
}

// NewTimer starts counting the period from start.
func NewTimer(name string, period uint32, start uint32, fn func(now uint32)) *Timer {
	return &Timer{Name: name, Period: period, lastFire: start, fn: fn}
}

// Due reports whether the period has elapsed at now. Millisecond values are
// compared modulo 2^32.
func (t *Timer) Due(now uint32) bool {
	return now-t.lastFire >= t.Period
}

// Fire runs the timer's function and restarts its period at now.
func (t *Timer) Fire(now uint32) {
	t.lastFire = now
	if t.fn != nil {
		t.fn(now)
	}
}

func (t *Timer) LastFire() uint32 {
	return t.lastFire
}

// Scheduler polls a fixed set of timers from the foreground loop. Timers are
// never removed.
type Scheduler struct {
	now    func() uint32
	timers []*Timer
}

// New creates a scheduler reading the time from now. Every timer shares it.
func New(now func() uint32) *Scheduler {
	return &Scheduler{now: now}
}

// Every registers a timer whose first period starts now.
func (s *Scheduler) Every(name string, period time.Duration, fn func(now uint32)) *Timer {
	t := NewTimer(name, uint32(period.Milliseconds()), s.now(), fn)
	s.timers = append(s.timers, t)
	logger.Infof("Scheduled [%v] every [%v]", name, period)
	return t
}

// Poll fires every timer due at now, in registration order, and returns how
// many fired.
func (s *Scheduler) Poll(now uint32) int {
	fired := 0
	for _, t := range s.timers {
		if t.Due(now) {
			t.Fire(now)
			FiresTotal.WithLabelValues(t.Name).Inc()
			fired++
		}
	}
	return fired
}

// Run is the foreground loop. It returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context, idle time.Duration) {
	logger.Infof("Foreground loop started with [%v] timers", len(s.timers))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Foreground loop stopped")
			return
		default:
		}
		s.Poll(s.now())
		time.Sleep(idle)
	}
}
