package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/i18n"
	"github.com/ponyclubacheron/site-service/internal/lifecycle"
	"github.com/ponyclubacheron/site-service/internal/observability"
	"github.com/ponyclubacheron/site-service/internal/service"
	"github.com/ponyclubacheron/site-service/internal/traffic"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, checks reachability of a shared cache backend.
	CachePing func(ctx context.Context) error
}

// PageConfig carries the third-party booking widget settings rendered into pages.
type PageConfig struct {
	BookingScriptURL string
	BookingChannel   string
}

// Options configures a Handler. Zero values take the defaults.
type Options struct {
	Health      *HealthConfig
	CachePolicy CachePolicy
	Pages       PageConfig
	Now         func() time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather      *service.WeatherService
	dictionaries *i18n.Resolver
	healthConfig *HealthConfig
	cachePolicy  CachePolicy
	pages        PageConfig
	now          func() time.Time
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(weather *service.WeatherService, dictionaries *i18n.Resolver, opts Options, logger *zap.Logger) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:      weather,
		dictionaries: dictionaries,
		healthConfig: opts.Health,
		cachePolicy:  opts.CachePolicy.withDefaults(),
		pages:        opts.Pages,
		now:          opts.Now,
		logger:       logger,
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		"dictionaries": "healthy",
		"weatherApi":   "healthy",
	}
	if result.reason == "dictionaries_unavailable" {
		checks["dictionaries"] = "unhealthy"
	}
	if result.reason == "error_rate_breach" {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if h.healthConfig.CachePing(ctx) == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
		cancel()
	}

	writeJSON(w, result.statusCode, map[string]any{
		"status":    result.status,
		"service":   "site-service",
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > dictionaries unavailable > degraded > overloaded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.dictionaries != nil && !h.dictionaries.Ready() {
		return healthResult{"unavailable", http.StatusServiceUnavailable, "dictionaries_unavailable"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.DegradedWindow > 0 &&
		traffic.Degraded(h.healthConfig.DegradedWindow, float64(h.healthConfig.DegradedErrorPct)) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	limit := int(float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds())
	if traffic.Overloaded(h.healthConfig.OverloadWindow, limit, float64(h.healthConfig.OverloadThresholdPct)) {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// NotFound writes a NOT_FOUND error. Used as the router's fallback handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
