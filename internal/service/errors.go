package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ponyclubacheron/site-service/internal/client"
)

// Kind classifies a weather failure for the response policy.
type Kind string

const (
	// KindConfig means the upstream credential is missing. No network call was made.
	KindConfig Kind = "config"
	// KindUpstream covers non-2xx responses and transport failures.
	KindUpstream Kind = "upstream"
	// KindMalformed means the upstream answered but the body failed validation.
	KindMalformed Kind = "malformed"
	// KindUnexpected is a recovered panic or any failure outside the taxonomy.
	KindUnexpected Kind = "unexpected"
)

// Error is the typed failure result of a weather lookup. Reason is safe to show to users.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("weather %s error: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("weather %s error: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify converts a fetch error into an *Error with a user-facing reason.
func classify(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}

	var status *client.StatusError
	switch {
	case errors.Is(err, client.ErrNotConfigured):
		return &Error{Kind: KindConfig, Reason: "Weather API key not configured", Err: err}
	case errors.Is(err, client.ErrMalformedPayload):
		return &Error{Kind: KindMalformed, Reason: "Invalid weather data format received", Err: err}
	case errors.As(err, &status):
		return &Error{Kind: KindUpstream, Reason: fmt.Sprintf("Weather API responded with status: %d", status.StatusCode), Err: err}
	case errors.Is(err, context.DeadlineExceeded) || client.CategorizeError(err) == client.ErrorCategoryTimeout:
		return &Error{Kind: KindUpstream, Reason: "Weather API request timed out", Err: err}
	case client.CategorizeError(err) == client.ErrorCategoryCircuitOpen:
		return &Error{Kind: KindUpstream, Reason: "Weather API temporarily unavailable", Err: err}
	default:
		return &Error{Kind: KindUpstream, Reason: "Failed to fetch weather data", Err: err}
	}
}

// panicError wraps a recovered panic value.
func panicError(v any) *Error {
	return &Error{Kind: KindUnexpected, Reason: "Internal server error", Err: fmt.Errorf("panic: %v", v)}
}
