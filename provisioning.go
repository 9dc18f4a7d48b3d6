package main

import (
	"context"
	"io"
	"time"

	"github.com/gr-butler/homeweather/config"
	"github.com/gr-butler/homeweather/env"
	"github.com/gr-butler/homeweather/led"
	"github.com/gr-butler/homeweather/provision"
	logger "github.com/sirupsen/logrus"
)

// flashes after a window that left the station without a network
const provisionFailPulses = 3

// shouldProvision is true when asked for on the command line, or when there is
// no network to join.
func shouldProvision(args env.Args, cfg config.Configuration) bool {
	return *args.Provision || !cfg.Provisioned()
}

// runProvisioning holds boot until the provisioning window closes.
func runProvisioning(ctx context.Context, settings *env.Settings, store config.Store, cfg config.Configuration, indicator *led.LED) config.Configuration {
	ch, err := provision.OpenSerial(settings.ProvisionPort, settings.ProvisionBaud, settings.ProvisionName)
	if err != nil {
		logger.Errorf("Provisioning unavailable [%v]", err)
		return cfg
	}
	return provisionOver(ctx, ch, store, cfg, settings.ProvisionTimeout, indicator)
}

// provisionOver serves one session on ch. The indicator stays lit while the
// window is open and flickers afterwards if there is still no network to join.
func provisionOver(ctx context.Context, ch io.ReadWriteCloser, store config.Store, cfg config.Configuration, timeout time.Duration, indicator *led.LED) config.Configuration {
	session := provision.NewSession(store, cfg, provision.Options{Timeout: timeout})
	logger.Infof("Provisioning session [%v] open", session.ID)
	indicator.On()
	cfg = session.Run(ctx, ch)
	indicator.Off()
	logger.Infof("Provisioning session [%v] closed", session.ID)
	if !cfg.Provisioned() {
		logger.Warn("Still no network configured")
		indicator.Flicker(provisionFailPulses)
	}
	return cfg
}
