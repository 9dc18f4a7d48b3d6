package led

import (
	"sync"
	"time"

	"github.com/gr-butler/homeweather/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type LED struct {
	Name    string
	lock    sync.Mutex
	on      bool
	blink   chan struct{}
	done    chan struct{}
	gpioPin gpio.PinOut
}

// NewLED looks the pin up by name. A missing pin gives an LED that does
// nothing, the station runs fine without its lights.
func NewLED(name string, pinName string) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", pinName, name)
	var pin gpio.PinOut
	if p := gpioreg.ByName(pinName); p != nil {
		pin = p
	} else {
		logger.Errorf("Failed to find %v pin", pinName)
	}
	return newLED(name, pin)
}

func newLED(name string, pin gpio.PinOut) *LED {
	l := &LED{
		Name:    name,
		blink:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		gpioPin: pin,
	}
	if pin != nil {
		_ = pin.Out(gpio.Low)
	}
	go func() {
		for {
			select {
			case <-l.blink:
				l.Flash()
			case <-l.done:
				l.Off()
				return
			}
		}
	}()
	return l
}

// Blink asks for a flash without waiting for it. Requests made while a flash
// is pending are dropped.
func (l *LED) Blink() {
	select {
	case l.blink <- struct{}{}:
	default:
	}
}

func (l *LED) Close() {
	close(l.done)
}

func (l *LED) On() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Off() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.Low)
	}
}

// Flash inverts the LED briefly and restores it.
func (l *LED) Flash() {
	if l.gpioPin == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.on {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(env.LEDFlashDuration)
		_ = l.gpioPin.Out(gpio.Low)
	} else {
		// 'off' flash
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(env.LEDFlashDuration)
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Flicker(pulses int) {
	if l.gpioPin == nil {
		return
	}
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := 0; i < pulses; i++ {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(env.LEDFlashDuration)
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(env.LEDFlashDuration)
	}
	if l.on {
		_ = l.gpioPin.Out(gpio.High)
	}
}
