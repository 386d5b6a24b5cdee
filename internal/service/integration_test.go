//go:build integration
// +build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ponyclubacheron/site-service/internal/cache"
	"github.com/ponyclubacheron/site-service/internal/client"
	"github.com/ponyclubacheron/site-service/internal/service"
	"github.com/ponyclubacheron/site-service/internal/testhelpers"
)

// setupIntegrationService builds a service against the live upstream.
func setupIntegrationService(t *testing.T, cfg testhelpers.IntegrationTestConfig) *service.WeatherService {
	t.Helper()
	logger := zaptest.NewLogger(t)

	wc, err := client.NewWeatherAPIClient(client.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIURL,
		Timeout: 10 * time.Second,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}

	var c cache.Cache = cache.NewInMemoryCache()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			t.Fatalf("NewRedisCache() error = %v", err)
		}
		t.Cleanup(func() { _ = rc.Close() })
		c = rc
	}

	return service.NewWeatherService(wc, c, service.Options{
		Location:        cfg.Location,
		CoalesceTimeout: 15 * time.Second,
		Logger:          logger,
	})
}

// TestIntegration_LiveWeather verifies a live fetch followed by a cache hit.
func TestIntegration_LiveWeather(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc := setupIntegrationService(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := svc.GetWeather(ctx)
	if err != nil {
		t.Fatalf("GetWeather() error = %v", err)
	}
	if first.Cached || first.Snapshot.Condition == "" || first.Snapshot.Location != cfg.Location.Name {
		t.Errorf("first result = %+v", first)
	}

	second, err := svc.GetWeather(ctx)
	if err != nil {
		t.Fatalf("second GetWeather() error = %v", err)
	}
	if !second.Cached {
		t.Error("second result not served from cache")
	}
}
