package http

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/i18n"
)

// TestPreferredLocale verifies Accept-Language negotiation against the supported locales.
func TestPreferredLocale(t *testing.T) {
	tests := []struct {
		header string
		want   i18n.Locale
	}{
		{"", i18n.DefaultLocale},
		{"el-GR,el;q=0.9,en;q=0.8", i18n.Greek},
		{"el", i18n.Greek},
		{"en-US,en;q=0.9", i18n.DefaultLocale},
		{"de-DE", i18n.DefaultLocale},
		{"not a header;;;", i18n.DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := PreferredLocale(tt.header); got != tt.want {
				t.Errorf("PreferredLocale(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

// TestRedirectToLocale verifies / redirects temporarily to the negotiated locale.
func TestRedirectToLocale(t *testing.T) {
	env := newTestEnv(t, sunny, envOptions{})

	w := env.get("/", map[string]string{"Accept-Language": "el-GR,el;q=0.9"})
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/el/" {
		t.Errorf("Location = %q, want /el/", got)
	}
	if got := w.Header().Get("Vary"); got != "Accept-Language" {
		t.Errorf("Vary = %q", got)
	}

	w = env.get("/", nil)
	if got := w.Header().Get("Location"); got != "/en/" {
		t.Errorf("Location without header = %q, want /en/", got)
	}
}

// TestGetLocalePage verifies both locales render with their own content.
func TestGetLocalePage(t *testing.T) {
	tests := []struct {
		path      string
		wantLang  string
		wantTitle string
		wantAlt   string
	}{
		{"/en/", "en", "Welcome to Pony Club", `hreflang="el"`},
		{"/en", "en", "Welcome to Pony Club", `hreflang="el"`},
		{"/el/", "el", "Καλώς ήρθατε στο Pony Club", `hreflang="en"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t, sunny, envOptions{})
			w := env.get(tt.path, nil)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Language"); got != tt.wantLang {
				t.Errorf("Content-Language = %q, want %q", got, tt.wantLang)
			}
			if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
				t.Errorf("Content-Type = %q", got)
			}
			body := w.Body.String()
			for _, want := range []string{
				`<html lang="` + tt.wantLang + `">`,
				tt.wantTitle,
				tt.wantAlt,
				`data-booking-channel="chan-42"`,
				"https://widgets.example.com/loader.js",
				"TouristAttraction",
			} {
				if !strings.Contains(body, want) {
					t.Errorf("page missing %q", want)
				}
			}
		})
	}
}

// TestGetLocalePage_UnsupportedLocale verifies unknown locales are 404s.
func TestGetLocalePage_UnsupportedLocale(t *testing.T) {
	env := newTestEnv(t, sunny, envOptions{})

	for _, path := range []string{"/fr/", "/dictionaries/fr.json"} {
		w := env.get(path, map[string]string{"X-Correlation-ID": "loc-1"})
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, w.Code)
		}
		var body struct {
			Error struct {
				Code      string `json:"code"`
				RequestID string `json:"requestId"`
			} `json:"error"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Error.Code != "LOCALE_NOT_FOUND" || body.Error.RequestID != "loc-1" {
			t.Errorf("%s error = %+v", path, body.Error)
		}
	}
}

// TestGetDictionary verifies the dictionary document is served as JSON.
func TestGetDictionary(t *testing.T) {
	env := newTestEnv(t, sunny, envOptions{})
	w := env.get("/dictionaries/el.json", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
	var doc struct {
		Welcome struct {
			Title string `json:"title"`
		} `json:"welcome"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Welcome.Title != "Καλώς ήρθατε στο Pony Club" {
		t.Errorf("welcome.title = %q", doc.Welcome.Title)
	}
}

// TestGetLocalePage_FallsBackToDefault verifies a broken locale document serves the default content.
func TestGetLocalePage_FallsBackToDefault(t *testing.T) {
	en, err := fs.ReadFile(i18n.EmbeddedSource(), "en.json")
	if err != nil {
		t.Fatal(err)
	}
	source := fstest.MapFS{
		"en.json": {Data: en},
		"el.json": {Data: []byte(`{"common":`)},
	}
	env := newTestEnv(t, sunny, envOptions{resolver: i18n.NewResolver(source, zap.NewNop())})

	w := env.get("/el/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Language"); got != "en" {
		t.Errorf("Content-Language = %q, want en", got)
	}
	if !strings.Contains(w.Body.String(), "Welcome to Pony Club") {
		t.Error("fallback page missing English title")
	}
}

// TestGetLocalePage_DefaultUnavailable verifies a missing default dictionary is a 500.
func TestGetLocalePage_DefaultUnavailable(t *testing.T) {
	env := newTestEnv(t, sunny, envOptions{
		resolver:  i18n.NewResolver(fstest.MapFS{}, zap.NewNop()),
		noPreload: true,
	})

	w := env.get("/en/", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "DICTIONARY_UNAVAILABLE") {
		t.Errorf("body = %s", w.Body.String())
	}
}
