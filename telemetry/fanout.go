package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// PublishFailures counts failed publishes per sink.
var PublishFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telemetry_publish_failures_total",
		Help: "Failed telemetry publishes by sink",
	},
	[]string{"sink"},
)

// Fanout publishes to every sink. One sink failing does not stop the others.
type Fanout []Publisher

func (f Fanout) Name() string {
	return "fanout"
}

func (f Fanout) Publish(ctx context.Context, r Reading) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, r); err != nil {
			logger.Errorf("Failed to publish to [%v] [%v]", p.Name(), err)
			PublishFailures.WithLabelValues(p.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
