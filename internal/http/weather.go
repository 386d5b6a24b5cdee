package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
	"github.com/ponyclubacheron/site-service/internal/service"
	"github.com/ponyclubacheron/site-service/internal/traffic"
)

// CachePolicy sets the Cache-Control lifetimes of weather responses.
type CachePolicy struct {
	// MaxAge is the browser lifetime of a freshly fetched response.
	MaxAge               time.Duration
	SharedMaxAge         time.Duration
	StaleWhileRevalidate time.Duration
	// ErrorMaxAge covers failures and stale fallbacks.
	ErrorMaxAge      time.Duration
	UnexpectedMaxAge time.Duration
}

// DefaultCachePolicy returns the production lifetimes.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		MaxAge:               3 * time.Hour,
		SharedMaxAge:         6 * time.Hour,
		StaleWhileRevalidate: 24 * time.Hour,
		ErrorMaxAge:          10 * time.Minute,
		UnexpectedMaxAge:     5 * time.Minute,
	}
}

func (p CachePolicy) withDefaults() CachePolicy {
	d := DefaultCachePolicy()
	if p.MaxAge <= 0 {
		p.MaxAge = d.MaxAge
	}
	if p.SharedMaxAge <= 0 {
		p.SharedMaxAge = d.SharedMaxAge
	}
	if p.StaleWhileRevalidate <= 0 {
		p.StaleWhileRevalidate = d.StaleWhileRevalidate
	}
	if p.ErrorMaxAge <= 0 {
		p.ErrorMaxAge = d.ErrorMaxAge
	}
	if p.UnexpectedMaxAge <= 0 {
		p.UnexpectedMaxAge = d.UnexpectedMaxAge
	}
	return p
}

// freshHeader is used for a snapshot fetched by this request.
func (p CachePolicy) freshHeader() string {
	return p.successHeader(p.MaxAge)
}

// cachedHeader lets browsers keep a cached snapshot only until it expires server-side.
func (p CachePolicy) cachedHeader(remaining time.Duration) string {
	return p.successHeader(remaining)
}

func (p CachePolicy) successHeader(maxAge time.Duration) string {
	return fmt.Sprintf("public, max-age=%d, s-maxage=%d, stale-while-revalidate=%d",
		seconds(maxAge), seconds(p.SharedMaxAge), seconds(p.StaleWhileRevalidate))
}

func (p CachePolicy) errorHeader() string {
	return fmt.Sprintf("public, max-age=%d, s-maxage=%d", seconds(p.ErrorMaxAge), seconds(p.ErrorMaxAge))
}

func (p CachePolicy) unexpectedHeader() string {
	return fmt.Sprintf("public, max-age=%d, s-maxage=%d", seconds(p.UnexpectedMaxAge), seconds(p.UnexpectedMaxAge))
}

// seconds floors d to whole seconds, never negative.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// weatherResponse is the body of GET /api/weather.
type weatherResponse struct {
	Success     bool                    `json:"success"`
	Data        *models.WeatherSnapshot `json:"data,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Cached      *bool                   `json:"cached,omitempty"`
	Stale       bool                    `json:"stale,omitempty"`
	CacheExpiry string                  `json:"cacheExpiry,omitempty"`
	Timestamp   string                  `json:"timestamp,omitempty"`
}

// GetWeather handles GET /api/weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("weather handler panic", zap.Any("panic", rec))
			traffic.RecordError()
			h.writeUnexpected(w)
		}
	}()

	res, err := h.weather.GetWeather(r.Context())
	if err != nil {
		traffic.RecordError()
		var werr *service.Error
		if !errors.As(err, &werr) || werr.Kind == service.KindUnexpected {
			h.writeUnexpected(w)
			return
		}
		writeWeather(w, http.StatusServiceUnavailable, h.cachePolicy.errorHeader(), "", weatherResponse{
			Success:   false,
			Error:     werr.Reason,
			Timestamp: isoMillis(h.now()),
		})
		return
	}

	snapshot := res.Snapshot
	switch {
	case res.Stale:
		traffic.RecordError()
		writeWeather(w, http.StatusOK, h.cachePolicy.errorHeader(), "", weatherResponse{
			Success:     true,
			Data:        &snapshot,
			Cached:      boolPtr(true),
			Stale:       true,
			CacheExpiry: isoMillis(res.ExpiresAt),
			Timestamp:   isoMillis(h.now()),
		})
	case res.Cached:
		traffic.RecordSuccess()
		writeWeather(w, http.StatusOK, h.cachePolicy.cachedHeader(res.Remaining),
			fmt.Sprintf(`"weather-cached-%d"`, res.ExpiresAt.UnixMilli()),
			weatherResponse{
				Success:     true,
				Data:        &snapshot,
				Cached:      boolPtr(true),
				CacheExpiry: isoMillis(res.ExpiresAt),
			})
	default:
		traffic.RecordSuccess()
		now := h.now()
		writeWeather(w, http.StatusOK, h.cachePolicy.freshHeader(),
			fmt.Sprintf(`"weather-%d"`, now.UnixMilli()),
			weatherResponse{
				Success:     true,
				Data:        &snapshot,
				Cached:      boolPtr(false),
				CacheExpiry: isoMillis(res.ExpiresAt),
				Timestamp:   isoMillis(now),
			})
	}
}

func (h *Handler) writeUnexpected(w http.ResponseWriter) {
	writeWeather(w, http.StatusInternalServerError, h.cachePolicy.unexpectedHeader(), "", weatherResponse{
		Success:   false,
		Error:     "Internal server error",
		Timestamp: isoMillis(h.now()),
	})
}

func writeWeather(w http.ResponseWriter, status int, cacheControl, etag string, body weatherResponse) {
	w.Header().Set("Cache-Control", cacheControl)
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	writeJSON(w, status, body)
}

// isoMillis formats t like JavaScript's Date.toISOString.
func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func boolPtr(b bool) *bool {
	return &b
}
