package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/homeweather/buffer"
	"github.com/gr-butler/homeweather/clock"
	"github.com/gr-butler/homeweather/config"
	"github.com/gr-butler/homeweather/data"
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/led"
	"github.com/gr-butler/homeweather/network"
	"github.com/gr-butler/homeweather/provision"
	"github.com/gr-butler/homeweather/schedule"
	"github.com/gr-butler/homeweather/sensors"
	"github.com/gr-butler/homeweather/telemetry"
	"github.com/gr-butler/homeweather/wind"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/sirupsen/logrus"
)

const version = "GRB-Weather-2.0.0"

type atmosphereReader interface {
	Read() (sensors.TemperatureC, sensors.PressurehPa, sensors.RelHumidity, error)
}

type voltageReader interface {
	Volts() (float64, error)
}

type weatherstation struct {
	args     env.Args
	clock    *clock.Clock
	rainLog  *buffer.EventLog
	tracker  *wind.Tracker
	resolver *wind.Resolver

	atm     atmosphereReader
	vane    voltageReader
	battery voltageReader

	speeds     *buffer.SampleBuffer // for gust
	batteryAvg *buffer.SampleBuffer
	lastTips   uint64

	data     *data.WeatherData
	uploader *uploader

	rainLed      *led.LED
	heartbeatLed *led.LED
	testMode     bool
}

type webdata struct {
	TimeNow      string  `json:"time"`
	Temperature  float64 `json:"temperature_C"`
	Humidity     float64 `json:"humidity_RH"`
	Pressure     float64 `json:"pressure_hPa"`
	RainHr       float64 `json:"rain_mm_hr"`
	RainDay      float64 `json:"rain_mm_day"`
	RainTips     uint64  `json:"rain_tips"`
	WindDir      float64 `json:"wind_dir"`
	WindCompass  string  `json:"wind_compass"`
	WindSpeed    float64 `json:"wind_speed"`
	WindGust     float64 `json:"wind_gust"`
	BatteryVolts float64 `json:"battery_V"`
	BatteryLast  float64 `json:"battery_last_V"`
	Samples      int     `json:"samples"`
	SampleTime   string  `json:"sample_time,omitempty"`
}

var Prom_atmPresure = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "atmospheric_pressure",
		Help: "Atmospheric pressure hPa",
	},
)

var Prom_rainHour = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_hour",
		Help: "Rain mm over the last hour",
	},
)

var Prom_rainDayTotal = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_day",
		Help: "Rain mm over the last 24 hours",
	},
)

var Prom_rainTips = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "rain_bucket_tips_total",
		Help: "Bucket tips since boot",
	},
)

var Prom_humidity = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "relative_humidity",
		Help: "Relative Humidity",
	},
)

var Prom_temperature = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "temperature",
		Help: "Temperature C",
	},
)

var Prom_windspeed = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "windspeed",
		Help: "Instant wind speed mph",
	},
)

var Prom_windgust = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "windgust",
		Help: "Highest wind speed over the last few samples mph",
	},
)

var Prom_windDirection = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "winddirection",
		Help: "Wind Direction Deg",
	},
)

var Prom_battery = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "battery_volts",
		Help: "Battery voltage averaged over the report period",
	},
)

// called by prometheus
func init() {
	logger.Infof("%v: Initialize prometheus...", time.Now().Format(time.RFC822))
	prometheus.MustRegister(
		Prom_atmPresure,
		Prom_humidity,
		Prom_rainHour,
		Prom_rainDayTotal,
		Prom_rainTips,
		Prom_temperature,
		Prom_windspeed,
		Prom_windgust,
		Prom_windDirection,
		Prom_battery,
		schedule.FiresTotal,
		provision.CommandsTotal,
		telemetry.PublishFailures)
}

func main() {
	logger.Infof("Starting weather station [%v]", version)

	args := env.ParseArgs()
	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if *args.Test {
		logger.Info("TEST MODE")
	}

	settings, err := env.LoadSettings()
	if err != nil {
		logger.Errorf("Bad settings [%v]", err)
		logger.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store config.Store = config.NewFileStore(settings.ConfigPath)
	if *args.Test {
		store = &config.MemoryStore{}
	}
	cfg, err := store.Load()
	if err != nil {
		logger.Errorf("Failed to load configuration [%v]", err)
	}
	logger.Infof("Configuration [%v]", cfg)

	w := &weatherstation{
		args:         args,
		clock:        clock.New(nil),
		rainLog:      buffer.NewEventLog(env.RainLogCapacity),
		tracker:      wind.NewTracker(),
		resolver:     wind.DefaultResolver(),
		speeds:       buffer.NewBuffer(env.GustSamples),
		batteryAvg:   buffer.NewBuffer(env.SamplesPerReport),
		data:         data.CreateWeatherData(),
		rainLed:      led.NewLED("Rain", env.RainTipLed),
		heartbeatLed: led.NewLED("Heartbeat", env.HeartbeatLed),
		testMode:     *args.Test,
	}
	defer w.rainLed.Close()
	defer w.heartbeatLed.Close()

	if shouldProvision(args, cfg) {
		cfg = runProvisioning(ctx, settings, store, cfg, w.heartbeatLed)
		logger.Infof("Configuration after provisioning [%v]", cfg)
	}

	logger.Infof("%v: Initialize sensors...", time.Now().Format(time.RFC822))
	s, err := sensors.InitSensors(args, w.clock, w.rainLog, w.tracker)
	if err != nil {
		logger.Errorf("Failed to initialise sensors!! [%v]", err)
		logger.Exit(1)
	}
	defer s.Close()
	w.atm, w.vane, w.battery = s.Atm, s.Vane, s.Battery

	fanout := buildPublishers(ctx, settings, cfg)
	defer fanout.Close()
	if len(fanout) > 0 {
		var link *network.Link
		if cfg.Provisioned() {
			link = network.NewLink(
				network.DialProber{Addr: settings.ProbeAddr, Timeout: 5 * time.Second},
				network.NmcliAssociator{Interface: settings.WifiInterface},
				cfg.SSID, cfg.Password, settings.ReconnectEvery)
		}
		w.uploader = newUploader(fanout, link)
		go w.uploader.Run(ctx)
	}

	sched := w.schedule()

	// start web service
	http.HandleFunc("/", w.handler)
	http.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: settings.StatusAddr}
	go func() {
		logger.Infof("Starting webservice on [%v]", settings.StatusAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Webservice stopped [%v]", err)
		}
	}()

	sched.Run(ctx, env.LoopIdle)

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	logger.Info("Exiting...")
}

// schedule registers the station timers. The clock is advanced by every
// poll, so sampling and reporting see the same seconds count as the rain log.
// No timer blocks; uploads run on the uploader goroutine.
func (w *weatherstation) schedule() *schedule.Scheduler {
	sched := schedule.New(w.clock.Update)
	sched.Every("sample", env.SamplePeriod, w.sample)
	sched.Every("report", env.ReportPeriod, func(uint32) { w.report() })
	sched.Every("heartbeat", env.HeartbeatPeriod, func(uint32) { w.heartbeat() })
	return sched
}

func (w *weatherstation) heartbeat() {
	// we can add complexity later, for now just flash to say we're alive!
	logger.Debug("Sending heartbeat")
	w.heartbeatLed.Blink()
}

func (w *weatherstation) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	latest, ok := w.data.Latest()
	wd := webdata{
		TimeNow:      time.Now().Format(time.RFC822),
		Temperature:  latest.TemperatureC,
		Humidity:     latest.Humidity,
		Pressure:     latest.PressureHPa,
		RainHr:       latest.RainHourMM,
		RainDay:      latest.RainDayMM,
		RainTips:     w.rainLog.Total(),
		WindDir:      latest.WindDirection,
		WindCompass:  wind.CompassPoint(latest.WindDirection),
		WindSpeed:    latest.WindSpeedMph,
		WindGust:     latest.WindGustMph,
		BatteryVolts: latest.BatteryVolts,
		BatteryLast:  w.batteryAvg.GetLast(),
		Samples:      w.data.Samples(),
	}
	if ok {
		wd.SampleTime = latest.Time.Format(time.RFC3339)
	}

	js, err := json.Marshal(wd)
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Debugf("Web read: \n[%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
