package sensors

import (
	"errors"
	"math"

	"github.com/gr-butler/homeweather/env"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

var ErrNoSensor = errors.New("sensor not available")

type PressurehPa float64
type RelHumidity float64
type TemperatureC float64

func (p PressurehPa) Float64() float64 {
	return float64(p)
}

func (r RelHumidity) Float64() float64 {
	return float64(r)
}

func (t TemperatureC) Float64() float64 {
	return float64(t)
}

type atmosphere struct {
	PH *bmxx80.Dev // BME280 temperature, pressure & humidity
}

func NewAtmosphere(bus i2c.Bus) *atmosphere {
	logger.Infof("Starting BME280 reader [%x]", env.BME280_I2C)
	bme, err := bmxx80.NewI2C(bus, env.BME280_I2C, &bmxx80.DefaultOpts)
	if err != nil {
		logger.Errorf("failed to initialize bme280: %v", err)
		return nil
	}
	return &atmosphere{PH: bme}
}

// Read returns temperature, pressure and humidity in one measurement.
func (a *atmosphere) Read() (TemperatureC, PressurehPa, RelHumidity, error) {
	if a == nil || a.PH == nil {
		return 0, 0, 0, ErrNoSensor
	}
	em := physic.Env{}
	if err := a.PH.Sense(&em); err != nil {
		return 0, 0, 0, err
	}
	return convertEnv(em)
}

func convertEnv(em physic.Env) (TemperatureC, PressurehPa, RelHumidity, error) {
	temp := TemperatureC(math.Round(em.Temperature.Celsius()*100) / 100)
	humidity := RelHumidity(math.Round(float64(em.Humidity) / float64(physic.PercentRH)))
	pressure := PressurehPa(math.Round((float64(em.Pressure)/float64(100*physic.Pascal))*100) / 100)
	return temp, pressure, humidity, nil
}
