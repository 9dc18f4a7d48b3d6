package sensors

import (
	"errors"

	"github.com/gr-butler/homeweather/buffer"
	"github.com/gr-butler/homeweather/clock"
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/wind"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

/*
 * Sensors owns the hardware. Pulse inputs feed the rain log and wind tracker
 * from their own goroutines; the analog and I2C parts are read on demand by
 * the foreground loop.
 *
 * Anything that fails to start is left nil and the station runs without it.
 */

type Sensors struct {
	Bus     i2c.BusCloser
	Atm     *atmosphere
	Vane    *AnalogInput
	Battery *AnalogInput
	Rain    *rainmeter
	Wind    *anemometer
}

func InitSensors(args env.Args, clk *clock.Clock, rainLog *buffer.EventLog, tracker *wind.Tracker) (*Sensors, error) {
	s := &Sensors{}

	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to init host drivers [%v]", err)
		return nil, err
	}

	bus, err := i2creg.Open("")
	if err != nil {
		logger.Errorf("Failed to open I²C, running without I²C sensors [%v]", err)
	} else {
		s.Bus = bus
		s.Atm = NewAtmosphere(bus)
		s.Vane, s.Battery = NewAnalogInputs(bus, args)
	}

	s.Rain = NewRainmeter(env.RainSensorIn, clk, rainLog)
	s.Wind = NewAnemometer(env.WindSensorIn, clk, tracker)
	if s.Rain == nil && s.Wind == nil {
		logger.Error("No pulse sensors available")
	}

	logger.Info("Sensors initialized.")
	return s, nil
}

func (s *Sensors) Close() error {
	var errs []error
	if s.Rain != nil {
		errs = append(errs, s.Rain.Halt())
	}
	if s.Wind != nil {
		errs = append(errs, s.Wind.Halt())
	}
	if s.Atm != nil {
		errs = append(errs, s.Atm.PH.Halt())
	}
	if s.Bus != nil {
		errs = append(errs, s.Bus.Close())
	}
	return errors.Join(errs...)
}
