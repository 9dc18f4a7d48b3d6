package data

import (
	"sync"

	"github.com/gr-butler/homeweather/telemetry"
)

// holder for the latest derived readings. The sampling timer writes, the
// reporting timer and the status page read.

type WeatherData struct {
	lock    sync.RWMutex
	current telemetry.Reading
	samples int
}

func CreateWeatherData() *WeatherData {
	return &WeatherData{}
}

func (wd *WeatherData) Update(r telemetry.Reading) {
	wd.lock.Lock()
	defer wd.lock.Unlock()
	wd.current = r
	wd.samples++
}

// Latest returns the newest reading and whether any sample has been taken.
func (wd *WeatherData) Latest() (telemetry.Reading, bool) {
	wd.lock.RLock()
	defer wd.lock.RUnlock()
	return wd.current, wd.samples > 0
}

func (wd *WeatherData) Samples() int {
	wd.lock.RLock()
	defer wd.lock.RUnlock()
	return wd.samples
}
