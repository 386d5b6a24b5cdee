package i18n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func readEmbedded(t *testing.T, locale Locale) []byte {
	t.Helper()
	data, err := fs.ReadFile(EmbeddedSource(), string(locale)+".json")
	if err != nil {
		t.Fatalf("read embedded %s: %v", locale, err)
	}
	return data
}

// withoutKey returns data with the dotted path removed.
func withoutKey(t *testing.T, data []byte, path ...string) []byte {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	m := doc
	for _, seg := range path[:len(path)-1] {
		m = m[seg].(map[string]any)
	}
	delete(m, path[len(path)-1])
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// TestValidateLocale verifies exact matching against the supported set.
func TestValidateLocale(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"el", true},
		{"fr", false},
		{"EN", false},
		{" en", false},
		{"", false},
		{"en-US", false},
	}
	for _, tt := range tests {
		if got := ValidateLocale(tt.code); got != tt.want {
			t.Errorf("ValidateLocale(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

// TestParseLocale_Unsupported verifies the sentinel is wrapped.
func TestParseLocale_Unsupported(t *testing.T) {
	_, err := ParseLocale("fr")
	if !errors.Is(err, ErrUnsupportedLocale) {
		t.Errorf("ParseLocale(fr) error = %v, want ErrUnsupportedLocale", err)
	}
	l, err := ParseLocale("el")
	if err != nil || l != Greek {
		t.Errorf("ParseLocale(el) = %q, %v; want el, nil", l, err)
	}
}

// TestSupportedLocales_DefaultFirst verifies order and that callers cannot mutate the set.
func TestSupportedLocales_DefaultFirst(t *testing.T) {
	got := SupportedLocales()
	if len(got) != 2 || got[0] != DefaultLocale {
		t.Fatalf("SupportedLocales() = %v, want [en el]", got)
	}
	got[0] = "xx"
	if SupportedLocales()[0] != DefaultLocale {
		t.Error("SupportedLocales() exposed internal slice")
	}
}

// TestEmbeddedDictionaries_Complete verifies both shipped documents parse and share the same key set.
func TestEmbeddedDictionaries_Complete(t *testing.T) {
	en, err := ParseDictionary(English, readEmbedded(t, English), nil)
	if err != nil {
		t.Fatalf("ParseDictionary(en) error = %v", err)
	}
	el, err := ParseDictionary(Greek, readEmbedded(t, Greek), nil)
	if err != nil {
		t.Fatalf("ParseDictionary(el) error = %v", err)
	}
	if !reflect.DeepEqual(en.Keys(), el.Keys()) {
		t.Errorf("key sets differ:\nen=%v\nel=%v", en.Keys(), el.Keys())
	}
	if got := en.Content().Welcome.Title; got != "Welcome to Pony Club" {
		t.Errorf("en welcome.title = %q", got)
	}
	if got := el.Content().Welcome.Title; got != "Καλώς ήρθατε στο Pony Club" {
		t.Errorf("el welcome.title = %q", got)
	}
}

// TestParseDictionary_Rejects verifies incomplete and malformed documents are rejected.
func TestParseDictionary_Rejects(t *testing.T) {
	en := readEmbedded(t, English)

	tests := []struct {
		name string
		data []byte
	}{
		{"missing leaf", withoutKey(t, en, "welcome", "title")},
		{"missing section", withoutKey(t, en, "weather")},
		{"unknown key", []byte(`{"common":{"unexpected":"x"}}`)},
		{"not json", []byte(`{"common":`)},
		{"null document", []byte(`null`)},
		{"empty value", []byte(`{"common":{"loading":""}}`)},
		{"section case differs", bytes.Replace(en, []byte(`"common"`), []byte(`"Common"`), 1)},
		{"leaf case differs", bytes.Replace(en, []byte(`"bookNow"`), []byte(`"booknow"`), 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDictionary(English, tt.data, nil); err == nil {
				t.Error("ParseDictionary() error = nil, want rejection")
			}
		})
	}
}

// TestParseDictionary_StripsBOM verifies a leading UTF-8 byte order mark is tolerated.
func TestParseDictionary_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, readEmbedded(t, English)...)
	if _, err := ParseDictionary(English, data, nil); err != nil {
		t.Errorf("ParseDictionary() with BOM error = %v", err)
	}
}

// TestDictionary_LookupAndT verifies nested lookup and the raw-path fallback.
func TestDictionary_LookupAndT(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d, err := ParseDictionary(English, readEmbedded(t, English), zap.New(core))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"packages.raftingRiding.activities.rafting", d.Content().Packages.RaftingRiding.Activities.Rafting, true},
		{"common.bookNow", d.Content().Common.BookNow, true},
		{"nonexistent.path", "", false},
		{"welcome", "", false},
		{"welcome.title.extra", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := d.Lookup(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}

	if got := d.T("nonexistent.path"); got != "nonexistent.path" {
		t.Errorf("T(nonexistent.path) = %q, want the path", got)
	}
	if logs.FilterMessage("translation key missing").Len() != 1 {
		t.Error("expected one missing-key warning")
	}
}

// TestResolver_CachesSuccessfulLoads verifies the second resolution is served from cache.
func TestResolver_CachesSuccessfulLoads(t *testing.T) {
	r := NewResolver(EmbeddedSource(), nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, Greek)
	if err != nil {
		t.Fatalf("Resolve(el) error = %v", err)
	}
	if first.Cached || first.FallbackUsed || first.Resolved != Greek {
		t.Errorf("first Resolve(el) = %+v", first)
	}
	second, err := r.Resolve(ctx, Greek)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Dictionary != first.Dictionary {
		t.Error("second Resolve(el) was not served from cache")
	}
}

// TestResolver_Unsupported verifies unsupported codes never reach the source.
func TestResolver_Unsupported(t *testing.T) {
	r := NewResolver(fstest.MapFS{}, nil)
	_, err := r.Resolve(context.Background(), Locale("fr"))
	if !errors.Is(err, ErrUnsupportedLocale) {
		t.Errorf("Resolve(fr) error = %v, want ErrUnsupportedLocale", err)
	}
}

// TestResolver_FallsBackToDefault verifies a broken non-default document yields the
// default dictionary, logs a warning and is retried on the next request.
func TestResolver_FallsBackToDefault(t *testing.T) {
	src := fstest.MapFS{
		"en.json": {Data: readEmbedded(t, English)},
		"el.json": {Data: []byte(`{"broken":`)},
	}
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewResolver(src, zap.New(core))

	res, err := r.Resolve(context.Background(), Greek)
	if err != nil {
		t.Fatalf("Resolve(el) error = %v", err)
	}
	if !res.FallbackUsed || res.Resolved != English || res.Requested != Greek || res.LoadErr == nil {
		t.Errorf("Resolve(el) = %+v, want fallback to en", res)
	}
	if logs.FilterMessageSnippet("falling back").Len() != 1 {
		t.Error("expected one fallback warning")
	}

	// Fix the document: the failed locale was not cached, so it loads now.
	src["el.json"] = &fstest.MapFile{Data: readEmbedded(t, Greek)}
	res, err = r.Resolve(context.Background(), Greek)
	if err != nil {
		t.Fatal(err)
	}
	if res.FallbackUsed || res.Resolved != Greek {
		t.Errorf("Resolve(el) after fix = %+v, want el", res)
	}
}

// TestResolver_DefaultFailureIsFatal verifies the default locale has no further fallback.
func TestResolver_DefaultFailureIsFatal(t *testing.T) {
	src := fstest.MapFS{
		"en.json": {Data: withoutKey(t, readEmbedded(t, English), "common", "loading")},
		"el.json": {Data: readEmbedded(t, Greek)},
	}
	r := NewResolver(src, nil)

	_, err := r.Resolve(context.Background(), English)
	if !errors.Is(err, ErrDefaultDictionary) {
		t.Errorf("Resolve(en) error = %v, want ErrDefaultDictionary", err)
	}
	if r.Ready() {
		t.Error("Ready() = true after default failure")
	}

	// A broken default also fails requests that would otherwise have fallen back.
	src["el.json"] = &fstest.MapFile{Data: []byte(`{}`)}
	r = NewResolver(src, nil)
	if _, err := r.Resolve(context.Background(), Greek); !errors.Is(err, ErrDefaultDictionary) {
		t.Errorf("Resolve(el) error = %v, want ErrDefaultDictionary", err)
	}
}

// TestResolver_Preload verifies Preload populates the cache and reports readiness.
func TestResolver_Preload(t *testing.T) {
	r := NewResolver(EmbeddedSource(), nil)
	if err := r.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	if !r.Ready() {
		t.Error("Ready() = false after Preload")
	}
}

// TestResolver_CanceledContext verifies a canceled context aborts loading.
func TestResolver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewResolver(EmbeddedSource(), nil)
	if _, err := r.Resolve(ctx, English); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

// TestResolver_CaseVariantKeysFallBack verifies a document whose keys differ only in case
// is treated as a load failure and served from the default locale.
func TestResolver_CaseVariantKeysFallBack(t *testing.T) {
	en := readEmbedded(t, English)
	el := bytes.Replace(readEmbedded(t, Greek), []byte(`"common"`), []byte(`"Common"`), 1)
	r := NewResolver(fstest.MapFS{
		"en.json": {Data: en},
		"el.json": {Data: el},
	}, nil)

	res, err := r.Resolve(context.Background(), Greek)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.FallbackUsed || res.Resolved != English {
		t.Errorf("Resolve() = %+v, want fallback to en", res)
	}
	if got := res.Dictionary.T("common.loading"); got == "common.loading" {
		t.Error("T(common.loading) missed on the fallback dictionary")
	}
}
