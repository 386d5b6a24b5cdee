//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"strconv"
	"testing"

	"github.com/ponyclubacheron/site-service/internal/models"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey   string
	APIURL   string
	Location models.Location
	// RedisURL selects the Redis cache when set; otherwise the in-memory cache is used.
	RedisURL string
}

// GetIntegrationConfig loads integration test configuration from the environment.
// Skips the test when WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	cfg := IntegrationTestConfig{
		APIKey:   apiKey,
		APIURL:   os.Getenv("WEATHER_API_URL"),
		Location: models.Location{Name: "Glyki, Greece", Latitude: 39.2394, Longitude: 20.4906},
		RedisURL: os.Getenv("INTEGRATION_REDIS_URL"),
	}
	if lat, err := strconv.ParseFloat(os.Getenv("INTEGRATION_LAT"), 64); err == nil {
		cfg.Location.Latitude = lat
	}
	if lon, err := strconv.ParseFloat(os.Getenv("INTEGRATION_LON"), 64); err == nil {
		cfg.Location.Longitude = lon
	}
	return cfg
}
