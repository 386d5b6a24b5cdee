package i18n

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/observability"
)

// ErrDefaultDictionary means the default locale's dictionary could not be loaded.
// There is no further fallback; callers treat it as fatal.
var ErrDefaultDictionary = errors.New("default dictionary unavailable")

// Resolution is the outcome of resolving a locale to a dictionary.
type Resolution struct {
	Dictionary *Dictionary
	// Requested is the locale the caller asked for.
	Requested Locale
	// Resolved is the locale of Dictionary. Differs from Requested only on fallback.
	Resolved Locale
	// Cached is true when Dictionary came from the in-process cache.
	Cached bool
	// FallbackUsed is true when Requested failed to load and the default was served.
	FallbackUsed bool
	// LoadErr is the load failure that triggered the fallback.
	LoadErr error
}

// Resolver loads locale documents from source and caches them for the process lifetime.
// Only successful loads are cached under their own locale; a fallback is never
// cached under the locale that failed, so a later request retries the load.
type Resolver struct {
	source fs.FS
	logger *zap.Logger

	mu           sync.RWMutex
	dictionaries map[Locale]*Dictionary
}

// NewResolver creates a Resolver reading "<locale>.json" files from source.
func NewResolver(source fs.FS, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:       source,
		logger:       logger,
		dictionaries: make(map[Locale]*Dictionary),
	}
}

// Resolve returns the dictionary for locale, falling back to DefaultLocale when
// the requested one cannot be loaded. Returns ErrUnsupportedLocale for codes
// outside the supported set and ErrDefaultDictionary when the default fails.
func (r *Resolver) Resolve(ctx context.Context, locale Locale) (Resolution, error) {
	if !ValidateLocale(string(locale)) {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}
	logger := observability.LoggerFromContext(ctx, r.logger)

	if d, ok := r.cached(locale); ok {
		return Resolution{Dictionary: d, Requested: locale, Resolved: locale, Cached: true}, nil
	}

	d, err := r.load(ctx, locale)
	if err == nil {
		r.store(locale, d)
		observability.DictionaryLoadsTotal.WithLabelValues(string(locale), "success").Inc()
		logger.Debug("dictionary loaded", zap.String("locale", string(locale)))
		return Resolution{Dictionary: d, Requested: locale, Resolved: locale}, nil
	}
	observability.DictionaryLoadsTotal.WithLabelValues(string(locale), "error").Inc()

	if locale == DefaultLocale {
		logger.Error("default dictionary failed to load",
			zap.String("locale", string(locale)),
			zap.Error(err),
		)
		return Resolution{Requested: locale, LoadErr: err}, fmt.Errorf("%w: %w", ErrDefaultDictionary, err)
	}

	logger.Warn("dictionary failed to load, falling back to default locale",
		zap.String("locale", string(locale)),
		zap.String("fallback", string(DefaultLocale)),
		zap.Error(err),
	)
	observability.DictionaryFallbacksTotal.WithLabelValues(string(locale)).Inc()

	fb, fbErr := r.Resolve(ctx, DefaultLocale)
	if fbErr != nil {
		return Resolution{Requested: locale, LoadErr: err}, fbErr
	}
	fb.Requested = locale
	fb.FallbackUsed = true
	fb.LoadErr = err
	return fb, nil
}

// Preload resolves every supported locale. Only a default-locale failure is returned;
// other failures are logged by Resolve and retried on demand.
func (r *Resolver) Preload(ctx context.Context) error {
	for _, l := range supportedLocales {
		if _, err := r.Resolve(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// Ready reports whether the default dictionary is loaded.
func (r *Resolver) Ready() bool {
	_, ok := r.cached(DefaultLocale)
	return ok
}

func (r *Resolver) cached(locale Locale) (*Dictionary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dictionaries[locale]
	return d, ok
}

// store keeps the first dictionary stored for a locale, so concurrent loaders agree on one instance.
func (r *Resolver) store(locale Locale, d *Dictionary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dictionaries[locale]; !ok {
		r.dictionaries[locale] = d
	}
}

func (r *Resolver) load(ctx context.Context, locale Locale) (*Dictionary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.source == nil {
		return nil, errors.New("no dictionary source configured")
	}
	data, err := fs.ReadFile(r.source, string(locale)+".json")
	if err != nil {
		return nil, fmt.Errorf("read %s dictionary: %w", locale, err)
	}
	return ParseDictionary(locale, data, r.logger)
}
