package service

import (
	"context"
	"sync"
	"time"

	"github.com/ponyclubacheron/site-service/internal/cache"
)

// inFlightRequest is one upstream fetch that several callers may wait on.
type inFlightRequest struct {
	done  chan struct{}
	entry cache.Entry
	err   error
}

// requestCoalescer collapses concurrent fetches for the same key into one upstream call.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight fetch for key or starts one with fn.
// fn runs on its own goroutine with ctx's values but not its cancellation, so one
// caller giving up does not fail the others. shared reports whether the caller joined
// an existing fetch. Waiting is bounded by ctx and the coalescer timeout.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(ctx context.Context) (cache.Entry, error)) (entry cache.Entry, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		fetchCtx := context.WithoutCancel(ctx)
		go func() {
			defer close(req.done)
			defer rc.cleanup(key)
			req.entry, req.err = fn(fetchCtx)
		}()
	}
	rc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-req.done:
		return req.entry, exists, req.err
	case <-waitCtx.Done():
		return cache.Entry{}, exists, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key once it completes.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}
