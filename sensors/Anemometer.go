package sensors

import (
	"time"

	"github.com/gr-butler/homeweather/clock"
	"github.com/gr-butler/homeweather/wind"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
)

/*
How do we measure the wind.

The anemometer generates 1 pulse per revolution and the specification states
that 1 pulse per second equates to 1.429 MPH. Rather than counting pulses per
sample we time the gap between pulses, so the speed updates on every
revolution and drops to zero when the cups stop.
*/

type anemometer struct {
	gpioPin gpio.PinIO // Wind speed pulse
	clock   *clock.Clock
	tracker *wind.Tracker
}

func NewAnemometer(pinName string, clk *clock.Clock, tracker *wind.Tracker) *anemometer {
	wp := gpioreg.ByName(pinName)
	if wp == nil {
		logger.Errorf("Failed to find %v - wind pin", pinName)
		return nil
	}

	logger.Infof("%s: %s", wp, wp.Function())

	if err := wp.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		logger.Errorf("Failed to set wind pin input [%v]", err)
		return nil
	}
	// reed switch bounce is well under 5ms, 100mph is a pulse every 14ms
	windpin, err := gpioutil.Debounce(wp, time.Millisecond, 5*time.Millisecond, gpio.FallingEdge)
	if err != nil {
		logger.Errorf("Failed to set debounce [%v]", err)
		return nil
	}

	a := &anemometer{gpioPin: windpin, clock: clk, tracker: tracker}
	logger.Info("Starting wind sensor")
	go a.watch()
	return a
}

func (a *anemometer) watch() {
	for {
		if !a.gpioPin.WaitForEdge(-1) {
			return
		}
		a.tracker.Tick(a.clock.Millis())
	}
}

func (a *anemometer) Halt() error {
	return a.gpioPin.Halt()
}
