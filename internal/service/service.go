package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/cache"
	"github.com/ponyclubacheron/site-service/internal/client"
	"github.com/ponyclubacheron/site-service/internal/events"
	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
)

const (
	DefaultTTL           = 3 * time.Hour
	DefaultStaleFallback = 24 * time.Hour
)

// Result is a successful weather lookup.
type Result struct {
	Snapshot models.WeatherSnapshot
	// Cached is true when the snapshot came from the cache rather than this request's fetch.
	Cached bool
	// Stale is true when an expired snapshot was served because the upstream failed.
	Stale     bool
	FetchedAt time.Time
	ExpiresAt time.Time
	// Remaining is the time left before ExpiresAt, measured at lookup time.
	Remaining time.Duration
}

// Options configures a WeatherService. Zero values take the defaults.
type Options struct {
	Location models.Location
	TTL      time.Duration
	// StaleFallback bounds how long after expiry a snapshot may still be served
	// when the upstream fails. Negative disables stale serving.
	StaleFallback time.Duration
	// CoalesceTimeout bounds how long a caller waits on a shared fetch. 0 disables coalescing.
	CoalesceTimeout time.Duration
	Now             func() time.Time
	Publisher       events.Publisher
	Logger          *zap.Logger
}

// WeatherService serves current conditions cache-aside: a fresh cached snapshot is
// returned as is, otherwise the upstream is asked and the result stored.
type WeatherService struct {
	client        client.WeatherClient
	cache         cache.Cache
	location      models.Location
	ttl           time.Duration
	staleFallback time.Duration
	now           func() time.Time
	publisher     events.Publisher
	logger        *zap.Logger
	misses        *missCounter
	coalescer     *requestCoalescer // nil if disabled
}

// NewWeatherService creates a WeatherService over the given client and cache.
func NewWeatherService(wc client.WeatherClient, c cache.Cache, opts Options) *WeatherService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.StaleFallback == 0 {
		opts.StaleFallback = DefaultStaleFallback
	}
	if opts.StaleFallback < 0 {
		opts.StaleFallback = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var coalescer *requestCoalescer
	if opts.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(opts.CoalesceTimeout)
	}
	return &WeatherService{
		client:        wc,
		cache:         c,
		location:      opts.Location,
		ttl:           opts.TTL,
		staleFallback: opts.StaleFallback,
		now:           opts.Now,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		misses:        newMissCounter(),
		coalescer:     coalescer,
	}
}

// Location returns the configured location.
func (s *WeatherService) Location() models.Location {
	return s.location
}

// TTL returns the freshness window applied to new snapshots.
func (s *WeatherService) TTL() time.Duration {
	return s.ttl
}

// GetWeather looks up current conditions for the configured location.
func (s *WeatherService) GetWeather(ctx context.Context) (Result, error) {
	return s.GetWeatherAt(ctx, s.location)
}

// GetWeatherAt looks up current conditions for loc. Failures are returned as *Error.
// Errors are never cached, so the next call after a failure tries the upstream again.
func (s *WeatherService) GetWeatherAt(ctx context.Context, loc models.Location) (res Result, err error) {
	logger := observability.LoggerFromContext(ctx, s.logger)
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, s.fail(logger, panicError(r))
		}
	}()

	observability.WeatherQueriesTotal.Inc()
	key := cache.Key(loc)
	now := s.now()

	entry, found, cacheErr := s.cache.Get(ctx, key)
	if cacheErr != nil {
		logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(cacheErr))
		found = false
	}
	if found && entry.Fresh(now) {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		logger.Debug("weather served from cache", zap.String("key", key), zap.Time("expiresAt", entry.ExpiresAt))
		return Result{
			Snapshot:  entry.Snapshot,
			Cached:    true,
			FetchedAt: entry.StoredAt,
			ExpiresAt: entry.ExpiresAt,
			Remaining: entry.Remaining(now),
		}, nil
	}
	observability.CacheMissesTotal.WithLabelValues("weather").Inc()

	concurrent, leave := s.misses.enter(key)
	defer leave()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
	}

	fresh, fetchErr := s.fetch(ctx, loc, key)
	if fetchErr == nil {
		logger.Debug("weather fetched from upstream", zap.String("key", key))
		return Result{
			Snapshot:  fresh.Snapshot,
			FetchedAt: fresh.StoredAt,
			ExpiresAt: fresh.ExpiresAt,
			Remaining: fresh.Remaining(now),
		}, nil
	}

	werr := classify(fetchErr)
	if found && werr.Kind != KindConfig && s.staleFallback > 0 && entry.StaleFor(now) <= s.staleFallback {
		age := now.Sub(entry.StoredAt)
		observability.StaleCacheServesTotal.Inc()
		observability.StaleCacheAgeSeconds.Observe(age.Seconds())
		logger.Warn("upstream failed, serving stale weather",
			zap.String("key", key),
			zap.Duration("age", age),
			zap.String("reason", werr.Reason),
			zap.Error(fetchErr),
		)
		return Result{
			Snapshot:  entry.Snapshot,
			Cached:    true,
			Stale:     true,
			FetchedAt: entry.StoredAt,
			ExpiresAt: entry.ExpiresAt,
		}, nil
	}
	return Result{}, s.fail(logger, werr)
}

// Prefetch fetches loc from the upstream and replaces the cached entry, even one that is
// still fresh, so a warmer running under the TTL keeps the entry from ever expiring.
// A failure leaves the existing entry in place.
func (s *WeatherService) Prefetch(ctx context.Context, loc models.Location) error {
	logger := observability.LoggerFromContext(ctx, s.logger)
	key := cache.Key(loc)
	if _, err := s.fetch(ctx, loc, key); err != nil {
		return s.fail(logger, classify(err))
	}
	logger.Debug("weather prefetched", zap.String("key", key))
	return nil
}

// fetch runs fetchAndStore, through the coalescer when enabled.
func (s *WeatherService) fetch(ctx context.Context, loc models.Location, key string) (cache.Entry, error) {
	if s.coalescer == nil {
		return s.fetchAndStore(ctx, loc, key)
	}
	entry, shared, err := s.coalescer.GetOrDo(ctx, key, func(ctx context.Context) (cache.Entry, error) {
		return s.fetchAndStore(ctx, loc, key)
	})
	if shared && err == nil {
		observability.RequestCoalescingHitsTotal.Inc()
	}
	return entry, err
}

// fetchAndStore asks the upstream, then stores and announces the new snapshot.
// Panics are converted to *Error so a coalesced goroutine cannot take the process down.
func (s *WeatherService) fetchAndStore(ctx context.Context, loc models.Location, key string) (entry cache.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry, err = cache.Entry{}, panicError(r)
		}
	}()

	snapshot, err := s.client.GetCurrentWeather(ctx, loc)
	if err != nil {
		return cache.Entry{}, err
	}

	now := s.now()
	entry = cache.Entry{
		Snapshot:  snapshot,
		StoredAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if setErr := s.cache.Set(ctx, key, entry, s.ttl+s.staleFallback); setErr != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	s.publisher.Publish(ctx, events.SnapshotEvent{
		Location:  loc,
		Snapshot:  snapshot,
		FetchedAt: entry.StoredAt,
		ExpiresAt: entry.ExpiresAt,
	})
	return entry, nil
}

// fail records and logs a failure, then returns it.
func (s *WeatherService) fail(logger *zap.Logger, werr *Error) error {
	observability.WeatherErrorsTotal.WithLabelValues(string(werr.Kind)).Inc()
	fields := []zap.Field{
		zap.String("kind", string(werr.Kind)),
		zap.String("reason", werr.Reason),
		zap.String("category", string(client.CategorizeError(werr.Err))),
		zap.Error(werr.Err),
	}
	switch werr.Kind {
	case KindMalformed:
		var pe *client.PayloadError
		if errors.As(werr.Err, &pe) {
			fields = append(fields, zap.String("violation", pe.Reason))
		}
		logger.Error("weather payload failed validation", fields...)
	case KindUnexpected:
		logger.Error("unexpected weather failure", fields...)
	default:
		logger.Warn("weather lookup failed", fields...)
	}
	return werr
}
