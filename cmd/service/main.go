package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ponyclubacheron/site-service/internal/cache"
	"github.com/ponyclubacheron/site-service/internal/circuitbreaker"
	"github.com/ponyclubacheron/site-service/internal/client"
	"github.com/ponyclubacheron/site-service/internal/config"
	"github.com/ponyclubacheron/site-service/internal/events"
	httphandler "github.com/ponyclubacheron/site-service/internal/http"
	"github.com/ponyclubacheron/site-service/internal/i18n"
	"github.com/ponyclubacheron/site-service/internal/lifecycle"
	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
	"github.com/ponyclubacheron/site-service/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if !cfg.WeatherConfigured() {
		logger.Warn("weather API key not configured; /api/weather will answer 503")
	}

	dictionaries := i18n.NewResolver(i18n.Source(cfg.DictionaryDir), logger)
	preloadCtx, preloadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := dictionaries.Preload(preloadCtx); err != nil {
		logger.Fatal("dictionaries", zap.Error(err))
	}
	preloadCancel()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Component:        "weather_api",
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker transition",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	weatherClient, err := client.NewWeatherAPIClient(client.Options{
		APIKey:         cfg.WeatherAPIKey,
		BaseURL:        cfg.WeatherAPIURL,
		UserAgent:      cfg.WeatherUserAgent,
		Timeout:        cfg.WeatherAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Breaker:        breaker,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.WeatherConfigured() && !cfg.TestingMode {
		validateCtx, validateCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := weatherClient.ValidateAPIKey(validateCtx, cfg.Location); err != nil {
			logger.Warn("weather API key check failed", zap.Error(err))
		}
		validateCancel()
	}

	backend, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache backend", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("event publisher", zap.Error(err))
	}

	weatherService := service.NewWeatherService(weatherClient, cache.NewInstrumented(backend.cache), service.Options{
		Location:        cfg.Location,
		TTL:             cfg.WeatherTTL,
		StaleFallback:   staleFallback(cfg.WeatherStaleFallback),
		CoalesceTimeout: cfg.WeatherCoalesceTimeout,
		Publisher:       publisher,
		Logger:          logger,
	})

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if cfg.WeatherWarmInterval > 0 && cfg.WeatherConfigured() {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		go func() {
			err := warmer.WarmPeriodic(warmCtx, []models.Location{cfg.Location}, cfg.WeatherWarmInterval)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(weatherService, dictionaries, httphandler.Options{
		Health: &httphandler.HealthConfig{
			OverloadWindow:       cfg.OverloadWindow,
			OverloadThresholdPct: cfg.OverloadThresholdPct,
			RateLimitRPS:         cfg.RateLimitRPS,
			DegradedWindow:       cfg.DegradedWindow,
			DegradedErrorPct:     cfg.DegradedErrorPct,
			CachePing:            backend.ping,
		},
		CachePolicy: httphandler.CachePolicy{
			MaxAge:               cfg.WeatherTTL,
			SharedMaxAge:         cfg.WeatherSharedMaxAge,
			StaleWhileRevalidate: cfg.WeatherStaleRevalidate,
			ErrorMaxAge:          cfg.WeatherErrorMaxAge,
			UnexpectedMaxAge:     cfg.WeatherUnexpectedMaxAge,
		},
		Pages: httphandler.PageConfig{
			BookingScriptURL: cfg.BookingScriptURL,
			BookingChannel:   cfg.BookingChannel,
		},
	}, logger)

	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RateLimiter:    limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("location", cfg.Location.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	sig := lifecycle.WaitForShutdown(context.Background())
	logger.Info("graceful shutdown triggered", zap.Stringer("signal", sig))
	stopWarming()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(shutdownCtx, logger, publisher); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	publisher.Close()
	if err := backend.close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// cacheBackend is the configured cache plus the hooks only shared backends have.
type cacheBackend struct {
	cache cache.Cache
	ping  func(ctx context.Context) error
	close func() error
}

func newCache(cfg *config.Config) (cacheBackend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return cacheBackend{}, err
		}
		return cacheBackend{cache: mc, ping: mc.Ping, close: mc.Close}, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return cacheBackend{}, err
		}
		return cacheBackend{cache: rc, ping: rc.Ping, close: rc.Close}, nil
	case config.BackendInMemory, "":
		return cacheBackend{cache: cache.NewInMemoryCache(), close: func() error { return nil }}, nil
	default:
		return cacheBackend{}, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

// staleFallback maps the configured window to service options, where zero means "disabled".
func staleFallback(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}
