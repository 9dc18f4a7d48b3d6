package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestHTTPPublisherSendsFields(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte("17"))
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.Client(), srv.URL, "WRITEKEY123", fastBackoff)
	require.NoError(t, p.Publish(context.Background(), sampleReading()))

	assert.Equal(t, "WRITEKEY123", got.Get("api_key"))
	assert.Equal(t, "0.6", got.Get("field1"))
	assert.Equal(t, "3.9", got.Get("field8"))
	assert.Empty(t, got.Get("WindGustMph"))
}

func TestHTTPPublisherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("1"))
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.Client(), srv.URL, "K", fastBackoff)
	require.NoError(t, p.Publish(context.Background(), sampleReading()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPPublisherGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// accepted at the HTTP level but dropped
		_, _ = w.Write([]byte("0"))
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.Client(), srv.URL, "K", fastBackoff)
	err := p.Publish(context.Background(), sampleReading())
	require.ErrorIs(t, err, errRejected)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPPublisherRejectsClientErrorsAndRateLimit(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.Client(), srv.URL, "K", BackoffConfig{InitialInterval: time.Millisecond})
	require.ErrorIs(t, p.Publish(context.Background(), sampleReading()), errRateLimited)

	status.Store(http.StatusUnauthorized)
	require.ErrorIs(t, p.Publish(context.Background(), sampleReading()), errUnexpected)
}

func TestHTTPPublisherNeedsWriteKey(t *testing.T) {
	p := NewHTTPPublisher(nil, "", "", DefaultBackoff)
	require.ErrorIs(t, p.Publish(context.Background(), sampleReading()), ErrNoWriteKey)
}

func TestHTTPPublisherCircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPublisher(srv.Client(), srv.URL, "K", BackoffConfig{InitialInterval: time.Millisecond})
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, p.Publish(context.Background(), sampleReading()), errServerError)
	}
	require.ErrorIs(t, p.Publish(context.Background(), sampleReading()), ErrCircuitOpen)
}

func TestHTTPPublisherHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewHTTPPublisher(srv.Client(), srv.URL, "K", DefaultBackoff)
	require.ErrorIs(t, p.Publish(ctx, sampleReading()), context.Canceled)
}
