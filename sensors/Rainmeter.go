package sensors

import (
	"time"

	"github.com/gr-butler/homeweather/buffer"
	"github.com/gr-butler/homeweather/clock"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
)

type rainmeter struct {
	gpioPin gpio.PinIO // Rain bucket tip pin
	clock   *clock.Clock
	log     *buffer.EventLog
}

func NewRainmeter(pinName string, clk *clock.Clock, log *buffer.EventLog) *rainmeter {
	rp := gpioreg.ByName(pinName)
	if rp == nil {
		logger.Errorf("Failed to find %v - rain pin", pinName)
		return nil
	}

	logger.Infof("%s: %s", rp, rp.Function())

	if err := rp.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		logger.Errorf("Failed to set rain pin input [%v]", err)
		return nil
	}
	// Ignore glitches lasting less than 100ms, and ignore repeated edges within 500ms.
	rainpin, err := gpioutil.Debounce(rp, 100*time.Millisecond, 500*time.Millisecond, gpio.FallingEdge)
	if err != nil {
		logger.Errorf("Failed to set debounce [%v]", err)
		return nil
	}

	r := &rainmeter{gpioPin: rainpin, clock: clk, log: log}
	logger.Info("Starting tip bucket monitor")
	go r.watch()
	return r
}

// watch records a timestamp for every bucket tip. Nothing else happens here.
func (r *rainmeter) watch() {
	for {
		if !r.gpioPin.WaitForEdge(-1) {
			return
		}
		if r.gpioPin.Read() == gpio.Low {
			r.log.Record(r.clock.Now())
		}
	}
}

func (r *rainmeter) Halt() error {
	return r.gpioPin.Halt()
}
