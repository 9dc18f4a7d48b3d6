package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
)

// Reading is one report. Field numbering follows the cloud channel layout.
type Reading struct {
	Time          time.Time `url:"created_at"`
	RainHourMM    float64   `url:"field1"`
	RainDayMM     float64   `url:"field2"`
	WindDirection float64   `url:"field3"`
	WindSpeedMph  float64   `url:"field4"`
	TemperatureC  float64   `url:"field5"`
	PressureHPa   float64   `url:"field6"`
	Humidity      float64   `url:"field7"`
	BatteryVolts  float64   `url:"field8"`
	WindGustMph   float64   `url:"-"`
}

// Values encodes r for an update request or MQTT payload.
func (r Reading) Values() (url.Values, error) {
	v, err := query.Values(r)
	if err != nil {
		return nil, fmt.Errorf("encode reading: %w", err)
	}
	return v, nil
}

// Publisher hands readings to somewhere outside the station.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r Reading) error
}
