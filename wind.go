package main

import (
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/sensors"
	"github.com/gr-butler/homeweather/wind"
	logger "github.com/sirupsen/logrus"
)

/*
Measuring gusts and wind intensity

The gust speed is defined by the maximum three second average wind speed
occurring in any period. We sample every two seconds, so the gust is the
highest of the last few instantaneous speeds.

A better measure of the overall wind intensity is defined by the average speed
and direction over the ten minute period leading up to the reporting time.
The cloud channel only takes the instantaneous speed so that is all we send.
*/

// windSpeed returns the instantaneous speed at nowMs and the current gust.
func (w *weatherstation) windSpeed(nowMs uint32) (speed float64, gust float64) {
	speed = w.tracker.Speed(nowMs)
	w.speeds.AddItem(speed)
	gust = float64(w.speeds.MaxLast(env.GustSamples))
	if *w.args.Speedon {
		interval, last := w.tracker.Interval()
		logger.Infof("Wind interval [%v]ms last tick [%v] speed [%.2f] gust [%.2f]", interval, last, speed, gust)
	}
	Prom_windspeed.Set(speed)
	Prom_windgust.Set(gust)
	return speed, gust
}

func (w *weatherstation) windDirection() float64 {
	volts, err := w.vane.Volts()
	if err != nil {
		if !sensors.IsMissing(err) {
			logger.Errorf("Failed to read wind direction [%v]", err)
		}
		return 0
	}
	heading := w.resolver.Resolve(volts)
	if *w.args.Diron {
		logger.Infof("Wind direction [%v] [%v]", heading, wind.CompassPoint(heading))
	}
	Prom_windDirection.Set(heading)
	return heading
}
