package main

import (
	"context"

	"github.com/gr-butler/homeweather/network"
	"github.com/gr-butler/homeweather/telemetry"
	logger "github.com/sirupsen/logrus"
)

// uploader sends readings from its own goroutine so a slow endpoint or a
// reconnect never holds up the foreground loop. It holds at most one unsent
// reading; a newer one replaces it.
type uploader struct {
	pending   chan telemetry.Reading
	publisher telemetry.Publisher
	link      *network.Link
}

// newUploader takes an optional link, checked before every send.
func newUploader(publisher telemetry.Publisher, link *network.Link) *uploader {
	return &uploader{
		pending:   make(chan telemetry.Reading, 1),
		publisher: publisher,
		link:      link,
	}
}

// Offer queues r without blocking. Only the foreground loop calls it.
func (u *uploader) Offer(r telemetry.Reading) {
	for {
		select {
		case u.pending <- r:
			return
		default:
		}
		select {
		case stale := <-u.pending:
			logger.Warnf("Upload still busy, dropping reading from [%v]", stale.Time.Format("15:04:05"))
		default:
		}
	}
}

// Run sends queued readings until ctx is done.
func (u *uploader) Run(ctx context.Context) {
	logger.Infof("Uploader started for [%v]", u.publisher.Name())
	for {
		select {
		case <-ctx.Done():
			logger.Info("Uploader stopped")
			return
		case r := <-u.pending:
			u.send(ctx, r)
		}
	}
}

func (u *uploader) send(ctx context.Context, r telemetry.Reading) {
	if u.link != nil {
		if err := u.link.EnsureConnected(ctx); err != nil {
			logger.Errorf("Network unavailable, report dropped [%v]", err)
			return
		}
	}
	if err := u.publisher.Publish(ctx, r); err != nil {
		logger.Errorf("Failed to publish [%v]", err)
	}
}
