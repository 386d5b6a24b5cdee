package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/ponyclubacheron/site-service/internal/observability"
)

// Instrumented wraps a Cache and records latency and error metrics per operation.
type Instrumented struct {
	next Cache
}

// NewInstrumented wraps next with metrics.
func NewInstrumented(next Cache) *Instrumented {
	return &Instrumented{next: next}
}

func (c *Instrumented) Get(ctx context.Context, key string) (Entry, bool, error) {
	start := time.Now()
	entry, ok, err := c.next.Get(ctx, key)
	c.observe("get", start, err)
	return entry, ok, err
}

func (c *Instrumented) Set(ctx context.Context, key string, entry Entry, retain time.Duration) error {
	start := time.Now()
	err := c.next.Set(ctx, key, entry, retain)
	c.observe("set", start, err)
	return err
}

func (c *Instrumented) observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		observability.CacheErrorsTotal.WithLabelValues(op, errorCategory(err)).Inc()
	}
	observability.CacheOperationDurationSeconds.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func errorCategory(err error) string {
	var netErr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return "timeout"
		}
		return "connection"
	case errors.As(err, &syntaxErr) || errors.As(err, &typeErr):
		return "decode"
	default:
		return "unknown"
	}
}
