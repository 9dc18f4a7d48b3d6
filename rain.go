package main

import (
	"math"

	"github.com/gr-butler/homeweather/env"
	logger "github.com/sirupsen/logrus"
)

// rainTotals returns the mm fallen in the last hour and the last day. Both
// come from the same tip log, counted back from the current clock second.
func (w *weatherstation) rainTotals() (hour float64, day float64) {
	now := w.clock.Now()
	hourTips := w.rainLog.CountWithin(env.RainHourWindow, now)
	dayTips := w.rainLog.CountWithin(env.RainDayWindow, now)

	total := w.rainLog.Total()
	if total > w.lastTips {
		logger.Infof("Bucket tip [%v]", total)
		Prom_rainTips.Add(float64(total - w.lastTips))
		w.lastTips = total
		if w.rainLed != nil {
			w.rainLed.Blink()
		}
	}

	hour = tipsToMM(hourTips)
	day = tipsToMM(dayTips)
	if *w.args.Rainon {
		logger.Infof("Rain tips hour [%v] day [%v] mm hour [%.2f] day [%.2f]", hourTips, dayTips, hour, day)
	}
	Prom_rainHour.Set(hour)
	Prom_rainDayTotal.Set(day)
	return hour, day
}

func tipsToMM(tips int) float64 {
	return math.Round(float64(tips)*env.MmPerTip*100) / 100
}
