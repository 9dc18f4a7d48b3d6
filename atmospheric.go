package main

import (
	"github.com/gr-butler/homeweather/sensors"
	logger "github.com/sirupsen/logrus"
)

// atmosphere reads the BME280. Any failure gives zero readings for this
// sample.
func (w *weatherstation) atmosphere() (tempC float64, hPa float64, rh float64) {
	t, p, h, err := w.atm.Read()
	if err != nil {
		if !sensors.IsMissing(err) {
			logger.Warnf("No atmospheric data [%v]", err)
		}
		return 0, 0, 0
	}
	Prom_temperature.Set(t.Float64())
	Prom_atmPresure.Set(p.Float64())
	Prom_humidity.Set(h.Float64())
	return t.Float64(), p.Float64(), h.Float64()
}

// batteryVolts is smoothed over one report period.
func (w *weatherstation) batteryVolts() float64 {
	v, err := w.battery.Volts()
	if err != nil {
		if !sensors.IsMissing(err) {
			logger.Warnf("No battery reading [%v]", err)
		}
		return 0
	}
	w.batteryAvg.AddItem(v)
	avg := float64(w.batteryAvg.Average())
	Prom_battery.Set(avg)
	return avg
}
