package http

import (
	"context"
	"sync"
)

// requestTracker counts requests being served and signals when the count drops to zero,
// so shutdown can drain without polling.
type requestTracker struct {
	mu     sync.Mutex
	active int64
	idle   chan struct{} // closed while active == 0
}

func newRequestTracker() *requestTracker {
	idle := make(chan struct{})
	close(idle)
	return &requestTracker{idle: idle}
}

// begin registers a request. The returned func ends it; extra calls are no-ops.
func (t *requestTracker) begin() (end func()) {
	t.mu.Lock()
	if t.active == 0 {
		t.idle = make(chan struct{})
	}
	t.active++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.active--
			if t.active == 0 {
				close(t.idle)
			}
		})
	}
}

func (t *requestTracker) count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// wait blocks until no request is active or ctx is done.
func (t *requestTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inFlight is maintained by MetricsMiddleware for every routed request.
var inFlight = newRequestTracker()

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return inFlight.count()
}

// WaitForInFlight blocks until in-flight requests drain or ctx is done.
func WaitForInFlight(ctx context.Context) error {
	return inFlight.wait(ctx)
}
