package observability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Flusher is anything holding buffered telemetry, such as the snapshot event producer.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushTelemetry drains buffered events and then syncs logs before process exit.
// Call during graceful shutdown after in-flight requests have drained.
// Prometheus is pull-based, so metrics need no flush.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, flushers ...Flusher) error {
	var errs []error
	for _, f := range flushers {
		if f == nil {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush events: %w", err))
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("flush logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
