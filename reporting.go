package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gr-butler/homeweather/config"
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/telemetry"

	logger "github.com/sirupsen/logrus"
)

// sample is the sampling timer. Everything the report sends is derived here.
func (w *weatherstation) sample(now uint32) {
	r := telemetry.Reading{Time: time.Now().UTC()}
	r.RainHourMM, r.RainDayMM = w.rainTotals()
	r.WindSpeedMph, r.WindGustMph = w.windSpeed(now)
	r.WindDirection = w.windDirection()
	r.TemperatureC, r.PressureHPa, r.Humidity = w.atmosphere()
	r.BatteryVolts = w.batteryVolts()
	w.data.Update(r)
}

// report hands the latest sample to the uploader and returns at once.
func (w *weatherstation) report() {
	r, ok := w.data.Latest()
	if !ok {
		logger.Warn("No samples yet, nothing to report")
		return
	}
	vals, err := r.Values()
	if err != nil {
		logger.Errorf("Failed to encode reading [%v]", err)
		return
	}
	logger.Infof("Data: [%v]", vals.Encode())

	if w.testMode {
		return
	}
	if w.uploader == nil {
		logger.Debug("No telemetry configured")
		return
	}
	w.uploader.Offer(r)
}

// buildPublishers creates every sink the settings and configuration allow.
func buildPublishers(ctx context.Context, settings *env.Settings, cfg config.Configuration) telemetry.Fanout {
	var fanout telemetry.Fanout
	if cfg.WriteKey != "" {
		client := &http.Client{Timeout: 30 * time.Second}
		fanout = append(fanout, telemetry.NewHTTPPublisher(client, settings.TelemetryURL, cfg.WriteKey, telemetry.DefaultBackoff))
	} else {
		logger.Warn("No write key configured, cloud updates disabled")
	}
	if settings.MQTTBroker != "" {
		if cfg.ChannelID == "" {
			logger.Warn("MQTT broker set but no channel id configured")
		} else {
			fanout = append(fanout, telemetry.NewMQTTPublisher(settings.MQTTBroker, cfg.ChannelID,
				settings.ProvisionName, settings.MQTTUsername, settings.MQTTPassword))
		}
	}
	if settings.ArchiveDSN != "" {
		archive, err := telemetry.OpenArchive(ctx, settings.ArchiveDSN)
		if err != nil {
			logger.Errorf("Failed to open archive [%v]", err)
		} else {
			fanout = append(fanout, archive)
		}
	}
	for _, p := range fanout {
		logger.Infof("Publishing to [%v]", p.Name())
	}
	return fanout
}
