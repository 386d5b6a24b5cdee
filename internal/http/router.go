package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ponyclubacheron/site-service/internal/observability"
)

// RouterConfig configures the per-route middleware of NewRouter.
type RouterConfig struct {
	// RateLimiter guards /api/weather. Nil disables rate limiting.
	RateLimiter    *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter wires every route of the site service onto a gorilla/mux router.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(RecoverMiddleware)

	weatherMiddleware := []mux.MiddlewareFunc{RateLimitMiddleware(cfg.RateLimiter)}
	if cfg.RequestTimeout > 0 {
		weatherMiddleware = append(weatherMiddleware, TimeoutMiddleware(cfg.RequestTimeout))
	}

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	r.Handle("/api/weather", chain(http.HandlerFunc(h.GetWeather), weatherMiddleware...)).Methods(http.MethodGet)
	r.HandleFunc("/dictionaries/{locale}.json", h.GetDictionary).Methods(http.MethodGet)
	r.HandleFunc("/", h.RedirectToLocale).Methods(http.MethodGet)
	r.HandleFunc("/{locale}", h.GetLocalePage).Methods(http.MethodGet)
	r.HandleFunc("/{locale}/", h.GetLocalePage).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(NotFound)
	return r
}
