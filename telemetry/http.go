package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	logger "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// DefaultUpdateURL is a ThingSpeak compatible update endpoint.
const DefaultUpdateURL = "https://api.thingspeak.com/update"

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errRejected    = errors.New("update rejected")
	ErrCircuitOpen = errors.New("circuit breaker open")
	ErrNoWriteKey  = errors.New("no write key configured")
)

// BackoffConfig controls retries of a single publish.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: time.Second,
	MaxInterval:     10 * time.Second,
}

// HTTPPublisher sends each reading as a GET to the update endpoint.
type HTTPPublisher struct {
	baseURL  string
	writeKey string
	client   *http.Client
	backoff  BackoffConfig
	circuit  *gobreaker.CircuitBreaker
}

type update struct {
	APIKey string `url:"api_key"`
	Reading
}

func NewHTTPPublisher(client *http.Client, baseURL, writeKey string, backoff BackoffConfig) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultUpdateURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telemetry-http",
		MaxRequests: 1,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit [%v] changed from [%v] to [%v]", name, from, to)
		},
	})
	return &HTTPPublisher{
		baseURL:  baseURL,
		writeKey: writeKey,
		client:   client,
		backoff:  backoff,
		circuit:  cb,
	}
}

func (h *HTTPPublisher) Name() string {
	return "http"
}

func (h *HTTPPublisher) Publish(ctx context.Context, r Reading) error {
	if h.writeKey == "" {
		return ErrNoWriteKey
	}
	vals, err := query.Values(update{APIKey: h.writeKey, Reading: r})
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	target := h.baseURL + "?" + vals.Encode()

	var attempt int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := h.circuit.Execute(func() (interface{}, error) {
			return nil, h.send(ctx, target)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if attempt >= h.backoff.MaxRetries {
			return err
		}

		delay := h.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if h.backoff.MaxInterval > 0 && delay > h.backoff.MaxInterval {
			delay = h.backoff.MaxInterval
		}
		logger.Debugf("Upload attempt [%v] failed, retry in [%v] [%v]", attempt+1, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func (h *HTTPPublisher) send(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errRateLimited
	case resp.StatusCode >= 500:
		return errServerError
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}
	// the endpoint answers 200 with entry id 0 when it drops an update
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "0" {
		return errRejected
	}
	return nil
}
