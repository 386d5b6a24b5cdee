package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/validation"
)

// Cache backends.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// DefaultLocation is the tour base the weather widget reports on.
var DefaultLocation = models.Location{Name: "Glyki, Greece", Latitude: 39.2394, Longitude: 20.4906}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort     string
	RequestTimeout time.Duration

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherUserAgent  string

	Location models.Location

	// WeatherTTL is the snapshot freshness window and the browser max-age of fresh responses.
	WeatherTTL              time.Duration
	WeatherStaleFallback    time.Duration
	WeatherSharedMaxAge     time.Duration
	WeatherStaleRevalidate  time.Duration
	WeatherErrorMaxAge      time.Duration
	WeatherUnexpectedMaxAge time.Duration
	WeatherCoalesceTimeout  time.Duration
	WeatherWarmInterval     time.Duration

	CacheBackend          string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisURL              string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	ShutdownTimeout time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	// DictionaryDir overrides the embedded locale documents when set.
	DictionaryDir string

	BookingScriptURL string
	BookingChannel   string

	KafkaBrokers []string
	KafkaTopic   string
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	WeatherAPI struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"weather_api"`

	Weather struct {
		Location             *models.Location `yaml:"location"`
		TTL                  string           `yaml:"ttl"`
		StaleFallback        string           `yaml:"stale_fallback"`
		SharedMaxAge         string           `yaml:"shared_max_age"`
		StaleWhileRevalidate string           `yaml:"stale_while_revalidate"`
		ErrorMaxAge          string           `yaml:"error_max_age"`
		UnexpectedMaxAge     string           `yaml:"unexpected_max_age"`
		CoalesceTimeout      string           `yaml:"coalesce_timeout"`
		WarmInterval         string           `yaml:"warm_interval"`
	} `yaml:"weather"`

	Cache struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			URL string `yaml:"url"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	I18n struct {
		DictionaryDir string `yaml:"dictionary_dir"`
	} `yaml:"i18n"`

	Booking struct {
		ScriptURL string `yaml:"script_url"`
		Channel   string `yaml:"channel"`
	} `yaml:"booking"`

	Events struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"events"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration relative to the working directory. See LoadFrom.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads root/.env (if present), then root/config/{ENV_NAME}.yaml (default dev)
// and root/config/secrets.yaml. The API key comes from WEATHER_API_KEY or the secrets
// file; a missing key is not an error here, every weather request reports it instead.
func LoadFrom(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("WEATHER_API_KEY"))
	if cfg.WeatherAPIKey == "" {
		key, err := readSecrets(filepath.Join(root, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	cfg.WeatherAPIURL = firstNonEmpty(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, "https://api.weatherapi.com/v1")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 8*time.Second)
	cfg.WeatherUserAgent = firstNonEmpty(fc.WeatherAPI.UserAgent, "PonyClub-Weather-Widget/1.0")

	cfg.Location = DefaultLocation
	if fc.Weather.Location != nil {
		cfg.Location = *fc.Weather.Location
	}
	cfg.WeatherTTL = parseDuration(fc.Weather.TTL, 3*time.Hour)
	cfg.WeatherStaleFallback = parseDurationOrZero(fc.Weather.StaleFallback, 24*time.Hour)
	cfg.WeatherSharedMaxAge = parseDuration(fc.Weather.SharedMaxAge, 6*time.Hour)
	cfg.WeatherStaleRevalidate = parseDuration(fc.Weather.StaleWhileRevalidate, 24*time.Hour)
	cfg.WeatherErrorMaxAge = parseDuration(fc.Weather.ErrorMaxAge, 10*time.Minute)
	cfg.WeatherUnexpectedMaxAge = parseDuration(fc.Weather.UnexpectedMaxAge, 5*time.Minute)
	cfg.WeatherCoalesceTimeout = parseDurationOrZero(fc.Weather.CoalesceTimeout, 15*time.Second)
	cfg.WeatherWarmInterval = parseDurationOrZero(fc.Weather.WarmInterval, 0)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, BackendInMemory)))
	cfg.MemcachedAddrs = strings.TrimSpace(firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211"))
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisURL = strings.TrimSpace(firstNonEmpty(os.Getenv("REDIS_URL"), fc.Cache.Redis.URL, "redis://localhost:6379/0"))

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 50
	}
	cfg.BreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.DictionaryDir = strings.TrimSpace(firstNonEmpty(os.Getenv("DICTIONARY_DIR"), fc.I18n.DictionaryDir))

	cfg.BookingScriptURL = firstNonEmpty(fc.Booking.ScriptURL, "https://widgets.bokun.io/assets/javascripts/apps/build/BokunWidgetsLoader.js")
	cfg.BookingChannel = fc.Booking.Channel

	cfg.KafkaBrokers = fc.Events.Brokers
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	cfg.KafkaTopic = firstNonEmpty(fc.Events.Topic, "weather-snapshots")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WeatherConfigured reports whether an upstream API key is present.
func (c *Config) WeatherConfigured() bool {
	return c.WeatherAPIKey != ""
}

func readSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is; they switch features off.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate performs post-load validation of configuration values.
// Raises RequestTimeout above WeatherAPITimeout when needed.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	loc, err := validation.ValidateLocation(cfg.Location)
	if err != nil {
		return fmt.Errorf("weather.location: %w", err)
	}
	cfg.Location = loc

	switch cfg.CacheBackend {
	case BackendInMemory:
	case BackendMemcached:
		if cfg.MemcachedAddrs == "" {
			return fmt.Errorf("cache.memcached.addrs required for memcached backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("cache.redis.url required for redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %s, %s or %s, got %q", BackendInMemory, BackendMemcached, BackendRedis, cfg.CacheBackend)
	}

	if cfg.OverloadThresholdPct > 100 || cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle percentages must be within 1..100")
	}
	if len(cfg.KafkaBrokers) > 0 && strings.TrimSpace(cfg.KafkaTopic) == "" {
		return fmt.Errorf("events.topic required when brokers are set")
	}
	return nil
}
