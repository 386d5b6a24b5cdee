package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/circuitbreaker"
	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
)

const (
	DefaultBaseURL   = "https://api.weatherapi.com/v1"
	DefaultUserAgent = "PonyClub-Weather-Widget/1.0"
	DefaultTimeout   = 8 * time.Second
)

type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherSnapshot, error)
}

var (
	ErrNotConfigured   = errors.New("weather API key not configured")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// Options configures a WeatherAPIClient. Zero values take the package defaults.
type Options struct {
	APIKey         string
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// Breaker, when set, guards every upstream attempt.
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *zap.Logger
}

// WeatherAPIClient fetches current conditions from WeatherAPI.com.
type WeatherAPIClient struct {
	apiKey         string
	endpoint       string
	userAgent      string
	timeout        time.Duration
	http           *resty.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewWeatherAPIClient builds a client. A missing API key is allowed here; every
// call then fails fast with ErrNotConfigured.
func NewWeatherAPIClient(opts Options) (*WeatherAPIClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 2
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 200 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &WeatherAPIClient{
		apiKey:         strings.TrimSpace(opts.APIKey),
		endpoint:       strings.TrimRight(opts.BaseURL, "/") + "/current.json",
		userAgent:      opts.UserAgent,
		timeout:        opts.Timeout,
		http:           resty.New().SetTimeout(opts.Timeout),
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breaker:        opts.Breaker,
		logger:         opts.Logger,
	}, nil
}

// Configured reports whether an API key is present.
func (c *WeatherAPIClient) Configured() bool {
	return c.apiKey != ""
}

// GetCurrentWeather fetches, validates and normalizes current conditions for loc.
// Malformed payloads return a *PayloadError and are never retried.
func (c *WeatherAPIClient) GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherSnapshot, error) {
	if !c.Configured() {
		return models.WeatherSnapshot{}, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.WeatherSnapshot{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload, err := c.guardedCall(ctx, loc)
		if err == nil {
			return Normalize(payload, loc.Name), nil
		}

		lastErr = err
		if !isRetryable(err) {
			return models.WeatherSnapshot{}, err
		}
		observability.LoggerFromContext(ctx, c.logger).Debug("weather API attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return models.WeatherSnapshot{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *WeatherAPIClient) guardedCall(ctx context.Context, loc models.Location) (Payload, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, loc)
	}
	var payload Payload
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		payload, callErr = c.callAPI(ctx, loc)
		return callErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return Payload{}, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return payload, err
}

func (c *WeatherAPIClient) callAPI(ctx context.Context, loc models.Location) (Payload, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().
		SetContext(reqCtx).
		SetQueryParams(map[string]string{
			"key": c.apiKey,
			"q":   loc.Query(),
			"aqi": "no",
		}).
		SetHeader("User-Agent", c.userAgent).
		SetHeader("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(c.endpoint)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			return Payload{}, fmt.Errorf("request timeout: %w", err)
		}
		return Payload{}, fmt.Errorf("http request failed: %w", err)
	}

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode())
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp.StatusCode(), resp.Body()); err != nil {
		return Payload{}, err
	}

	return ValidatePayload(resp.Body())
}

// ValidateAPIKey issues one request for loc and reports whether the key is accepted.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context, loc models.Location) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.callAPI(ctx, loc); err != nil {
		if errors.Is(err, ErrInvalidAPIKey) {
			return fmt.Errorf("%w: API key is invalid or disabled", ErrInvalidAPIKey)
		}
		return fmt.Errorf("validation request failed: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	// A 4xx other than 429 (e.g. 400 "No matching location") fails the same way on every attempt.
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "http request failed")
}

func (c *WeatherAPIClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// upstreamError is the WeatherAPI.com error body: {"error":{"code":1006,"message":"..."}}.
type upstreamError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx upstream response. It unwraps to the matching sentinel.
type StatusError struct {
	StatusCode   int
	ProviderCode int
	Message      string
	kind         error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%v: weather API responded with status: %d", e.kind, e.StatusCode)
	if e.Message != "" {
		msg += fmt.Sprintf(" (code %d: %s)", e.ProviderCode, e.Message)
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	se := &StatusError{StatusCode: statusCode, kind: ErrUpstreamFailure}
	var ue upstreamError
	if json.Unmarshal(body, &ue) == nil && ue.Error.Message != "" {
		se.ProviderCode = ue.Error.Code
		se.Message = ue.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		se.kind = ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		se.kind = ErrRateLimited
	}
	return se
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
