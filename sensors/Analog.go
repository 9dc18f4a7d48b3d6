package sensors

import (
	"errors"

	"github.com/gr-butler/homeweather/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// AnalogInput is one ADS1115 channel scaled to the voltage at the source.
type AnalogInput struct {
	name  string
	pin   analog.PinADC
	scale float64
	debug bool
}

// NewAnalogInputs returns the vane (channel 0) and battery (channel 1)
// inputs. Either may be nil.
func NewAnalogInputs(bus i2c.Bus, args env.Args) (vane *AnalogInput, battery *AnalogInput) {
	logger.Infof("Starting ADC I2C [%x]", env.ADS1115_I2C)
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = env.ADS1115_I2C
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		logger.Errorf("Failed to start ADC [%v]", err)
		return nil, nil
	}

	dirPin, err := adc.PinForChannel(ads1x15.Channel0, 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		logger.Errorf("Failed to open wind direction channel [%v]", err)
	} else {
		vane = &AnalogInput{name: "vane", pin: dirPin, scale: 1, debug: *args.Diron}
	}

	batPin, err := adc.PinForChannel(ads1x15.Channel1, 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		logger.Errorf("Failed to open battery channel [%v]", err)
	} else {
		battery = &AnalogInput{name: "battery", pin: batPin, scale: env.BatteryDivider}
	}
	return vane, battery
}

func (a *AnalogInput) Volts() (float64, error) {
	if a == nil {
		return 0, ErrNoSensor
	}
	sample, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	v := a.scale * float64(sample.V) / float64(physic.Volt)
	if a.debug {
		logger.Infof("ADC [%v] raw [%v] volts [%.3f]", a.name, sample.Raw, v)
	}
	return v, nil
}

// IsMissing reports whether err means the sensor was never found.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNoSensor)
}
