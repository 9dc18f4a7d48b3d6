package env

import "time"

const (
	GPIO12 = "GPIO12" // rain pin
	GPIO19 = "GPIO19" // rain tip LED
	GPIO20 = "GPIO20" // heartbeat LED
	GPIO27 = "GPIO27" // wind pin

	RainSensorIn = GPIO12
	WindSensorIn = GPIO27

	HeartbeatLed = GPIO20
	RainTipLed   = GPIO19

	// I2C addresses
	BME280_I2C  = 0x76
	ADS1115_I2C = 0x48

	// https://www.robotics.org.za/WH-SP-RG
	// https://forum.mysensors.org/topic/9594/misol-rain-gauge-tipping-bucket-rain-amount
	MmPerTip = 0.3537

	// battery is read through a 2:1 divider
	BatteryDivider = 2.0

	// rain events kept. A day of heavy rain is a few hundred tips.
	RainLogCapacity = 2048

	// rolling windows in seconds
	RainHourWindow = 3600
	RainDayWindow  = 86400

	SamplePeriod     = 2000 * time.Millisecond
	ReportPeriod     = 60000 * time.Millisecond
	HeartbeatPeriod  = 30 * time.Second
	ProvisionTimeout = 30 * time.Second
	LoopIdle         = 10 * time.Millisecond

	// samples kept for smoothing: one report period of samples
	SamplesPerReport = int(ReportPeriod / SamplePeriod)
	// gust is the highest speed over the last 3 samples
	GustSamples = 3

	LEDFlashDuration = time.Millisecond * 100
)
