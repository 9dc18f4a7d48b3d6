package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
)

// Settings are the deployment specific values, read from the environment
// (and a .env file when present).
type Settings struct {
	StatusAddr       string
	ConfigPath       string
	ProvisionPort    string
	ProvisionBaud    int
	ProvisionName    string
	ProvisionTimeout time.Duration
	TelemetryURL     string
	MQTTBroker       string
	MQTTUsername     string
	MQTTPassword     string
	ArchiveDSN       string
	ProbeAddr        string
	WifiInterface    string
	ReconnectEvery   time.Duration
}

// LoadSettings reads Settings with defaults for anything unset.
func LoadSettings() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file loaded [%v]", err)
	}
	s := &Settings{
		StatusAddr:    getenvDefault("STATUS_ADDR", ":80"),
		ConfigPath:    getenvDefault("CONFIG_PATH", "/var/lib/homeweather/config.bin"),
		ProvisionPort: getenvDefault("PROVISION_PORT", "/dev/rfcomm0"),
		ProvisionName: getenvDefault("PROVISION_NAME", "home-weather-station"),
		TelemetryURL:  getenvDefault("TELEMETRY_URL", "https://api.thingspeak.com/update"),
		MQTTBroker:    os.Getenv("MQTT_BROKER"),
		MQTTUsername:  os.Getenv("MQTT_USERNAME"),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),
		ArchiveDSN:    os.Getenv("ARCHIVE_DSN"),
		ProbeAddr:     getenvDefault("PROBE_ADDR", "api.thingspeak.com:443"),
		WifiInterface: os.Getenv("WIFI_INTERFACE"),
	}

	var err error
	if s.ProvisionBaud, err = getenvInt("PROVISION_BAUD", 9600); err != nil {
		return nil, err
	}
	if s.ProvisionTimeout, err = getenvDuration("PROVISION_TIMEOUT", ProvisionTimeout); err != nil {
		return nil, err
	}
	if s.ReconnectEvery, err = getenvDuration("RECONNECT_EVERY", 5*time.Second); err != nil {
		return nil, err
	}
	return s, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
