package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/ponyclubacheron/site-service/internal/i18n"
	"github.com/ponyclubacheron/site-service/internal/observability"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// localeMatcher matches Accept-Language against the supported locales, default first.
var localeMatcher = newLocaleMatcher()

func newLocaleMatcher() language.Matcher {
	var tags []language.Tag
	for _, l := range i18n.SupportedLocales() {
		tags = append(tags, language.Make(string(l)))
	}
	return language.NewMatcher(tags)
}

// PreferredLocale picks the supported locale that best matches an Accept-Language header.
// Falls back to the default locale when nothing matches.
func PreferredLocale(acceptLanguage string) i18n.Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return i18n.DefaultLocale
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return i18n.DefaultLocale
	}
	return i18n.SupportedLocales()[idx]
}

// RedirectToLocale handles GET / by redirecting to the visitor's preferred locale.
func (h *Handler) RedirectToLocale(w http.ResponseWriter, r *http.Request) {
	locale := PreferredLocale(r.Header.Get("Accept-Language"))
	w.Header().Set("Vary", "Accept-Language")
	http.Redirect(w, r, "/"+string(locale)+"/", http.StatusTemporaryRedirect)
}

// pageData is the view model of the landing page.
type pageData struct {
	Locale           string
	OGLocale         string
	T                i18n.Content
	Alternates       []string
	BookingScriptURL string
	BookingChannel   string
	JSONLD           map[string]any
}

// GetLocalePage handles GET /{locale}: the landing page rendered from the locale's dictionary.
func (h *Handler) GetLocalePage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolveLocale(w, r)
	if !ok {
		return
	}
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	t := res.Dictionary.Content()
	data := pageData{
		Locale:           string(res.Resolved),
		OGLocale:         ogLocale(res.Resolved),
		T:                t,
		BookingScriptURL: h.pages.BookingScriptURL,
		BookingChannel:   h.pages.BookingChannel,
		JSONLD: map[string]any{
			"@context":    "https://schema.org",
			"@type":       "TouristAttraction",
			"name":        t.JSONLD.Name,
			"description": t.JSONLD.Description,
			"brand":       map[string]string{"@type": "Brand", "name": t.JSONLD.BrandName},
		},
	}
	for _, l := range i18n.SupportedLocales() {
		if l != res.Resolved {
			data.Alternates = append(data.Alternates, string(l))
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		logger.Error("render page failed", zap.String("locale", data.Locale), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Page could not be rendered")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", data.Locale)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetDictionary handles GET /dictionaries/{locale}.json for client-side translation.
func (h *Handler) GetDictionary(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolveLocale(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Language", string(res.Resolved))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, res.Dictionary)
}

// resolveLocale resolves the {locale} route variable, writing the error response on failure.
func (h *Handler) resolveLocale(w http.ResponseWriter, r *http.Request) (i18n.Resolution, bool) {
	code := mux.Vars(r)["locale"]
	locale, err := i18n.ParseLocale(code)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "LOCALE_NOT_FOUND", "Locale not supported")
		return i18n.Resolution{}, false
	}

	res, err := h.dictionaries.Resolve(r.Context(), locale)
	if err != nil {
		logger := observability.LoggerFromContext(r.Context(), h.logger)
		if errors.Is(err, i18n.ErrDefaultDictionary) {
			logger.Error("default dictionary unavailable", zap.Error(err))
		} else {
			logger.Warn("dictionary resolution failed", zap.String("locale", code), zap.Error(err))
		}
		writeError(w, r, http.StatusInternalServerError, "DICTIONARY_UNAVAILABLE", "Content is temporarily unavailable")
		return i18n.Resolution{}, false
	}
	return res, true
}

func ogLocale(l i18n.Locale) string {
	if l == i18n.Greek {
		return "el_GR"
	}
	return "en_US"
}
