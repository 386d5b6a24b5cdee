package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ponyclubacheron/site-service/internal/circuitbreaker"
	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
	"github.com/ponyclubacheron/site-service/internal/testhelpers"
)

var glyki = models.Location{Name: "Glyki, Greece", Latitude: 39.2394, Longitude: 20.4906}

func newTestClient(t *testing.T, baseURL string, mod func(*Options)) *WeatherAPIClient {
	t.Helper()
	opts := Options{
		APIKey:         "test-api-key-12345",
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}
	if mod != nil {
		mod(&opts)
	}
	c, err := NewWeatherAPIClient(opts)
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}
	return c
}

// TestNewWeatherAPIClient_InvalidURL verifies a base URL without scheme or host is rejected.
func TestNewWeatherAPIClient_InvalidURL(t *testing.T) {
	if _, err := NewWeatherAPIClient(Options{BaseURL: "not a url"}); err == nil {
		t.Error("NewWeatherAPIClient() error = nil, want invalid URL")
	}
}

// TestGetCurrentWeather_NotConfigured verifies a missing key fails before any network activity.
func TestGetCurrentWeather_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(o *Options) { o.APIKey = "  " })
	_, err := c.GetCurrentWeather(context.Background(), glyki)

	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GetCurrentWeather() error = %v, want ErrNotConfigured", err)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", calls.Load())
	}
}

// TestGetCurrentWeather_Success verifies the request shape and the normalized result.
func TestGetCurrentWeather_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/current.json" {
			t.Errorf("path = %q, want /current.json", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-api-key-12345" || q.Get("q") != "39.2394,20.4906" || q.Get("aqi") != "no" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-1" {
			t.Errorf("X-Correlation-ID = %q, want corr-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(testhelpers.WeatherAPIBody(23.4, nil))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	got, err := c.GetCurrentWeather(ctx, glyki)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got.Temperature != 23 || got.Condition != "Sunny" || got.Location != "Glyki, Greece" {
		t.Errorf("GetCurrentWeather() = %+v", got)
	}
}

// TestGetCurrentWeather_ErrorStatuses verifies status mapping and which failures are retried.
func TestGetCurrentWeather_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"server error retried", http.StatusInternalServerError, ErrUpstreamFailure, 2},
		{"bad gateway retried", http.StatusBadGateway, ErrUpstreamFailure, 2},
		{"rate limited retried", http.StatusTooManyRequests, ErrRateLimited, 2},
		{"unauthorized not retried", http.StatusUnauthorized, ErrInvalidAPIKey, 1},
		{"forbidden not retried", http.StatusForbidden, ErrInvalidAPIKey, 1},
		{"bad request not retried", http.StatusBadRequest, ErrUpstreamFailure, 1},
		{"not found not retried", http.StatusNotFound, ErrUpstreamFailure, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":2006,"message":"API key is invalid."}}`))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)
			_, err := c.GetCurrentWeather(context.Background(), glyki)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

// TestGetCurrentWeather_MalformedNotRetried verifies a shape violation surfaces as
// ErrMalformedPayload after a single call.
func TestGetCurrentWeather_MalformedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write(testhelpers.WeatherAPIBody(20, func(d map[string]any) {
			delete(testhelpers.Current(d), "temp_c")
		}))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := c.GetCurrentWeather(context.Background(), glyki)

	var pe *PayloadError
	if !errors.As(err, &pe) {
		t.Fatalf("GetCurrentWeather() error = %v, want *PayloadError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

// TestGetCurrentWeather_RecoversOnRetry verifies a transient 503 followed by success returns data.
func TestGetCurrentWeather_RecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(testhelpers.WeatherAPIBody(18.5, nil))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	got, err := c.GetCurrentWeather(context.Background(), glyki)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got.Temperature != 19 {
		t.Errorf("Temperature = %d, want 19", got.Temperature)
	}
}

// TestGetCurrentWeather_Timeout verifies a slow upstream is cut off by the client timeout.
func TestGetCurrentWeather_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(o *Options) {
		o.Timeout = 50 * time.Millisecond
		o.RetryAttempts = 1
	})
	_, err := c.GetCurrentWeather(context.Background(), glyki)
	if err == nil {
		t.Fatal("GetCurrentWeather() error = nil, want timeout")
	}
	if got := CategorizeError(err); got != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %q, want timeout (err=%v)", got, err)
	}
}

// TestGetCurrentWeather_CircuitOpen verifies an open breaker short-circuits as an upstream failure.
func TestGetCurrentWeather_CircuitOpen(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Minute, Component: "weatherapi"})
	c := newTestClient(t, server.URL, func(o *Options) { o.Breaker = breaker })

	_, _ = c.GetCurrentWeather(context.Background(), glyki)
	if breaker.State() != circuitbreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", breaker.State())
	}

	before := calls.Load()
	_, err := c.GetCurrentWeather(context.Background(), glyki)
	if !errors.Is(err, ErrUpstreamFailure) || !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("GetCurrentWeather() error = %v, want upstream failure wrapping ErrOpen", err)
	}
	if calls.Load() != before {
		t.Error("upstream called while circuit open")
	}
}

// TestHandleErrorResponse_IncludesUpstreamMessage verifies the provider error body is kept for logs.
func TestHandleErrorResponse_IncludesUpstreamMessage(t *testing.T) {
	err := handleErrorResponse(400, []byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("handleErrorResponse() = %v, want ErrUpstreamFailure", err)
	}
	if want := "code 1006: No matching location found."; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q missing %q", err.Error(), want)
	}
	if handleErrorResponse(200, nil) != nil {
		t.Error("handleErrorResponse(200) != nil")
	}
}

// TestHandleErrorResponse_StatusError verifies the typed error carries the HTTP status.
func TestHandleErrorResponse_StatusError(t *testing.T) {
	err := handleErrorResponse(http.StatusTooManyRequests, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 429 {
		t.Fatalf("handleErrorResponse(429) = %v, want *StatusError 429", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("429 does not unwrap to ErrRateLimited")
	}
}
