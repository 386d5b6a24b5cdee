package i18n

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/observability"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dictionary is the immutable set of UI strings for one locale.
// Safe for concurrent use.
type Dictionary struct {
	locale  Locale
	content Content
	tree    map[string]any
	logger  *zap.Logger
}

// ParseDictionary decodes a locale document. Unknown keys, missing keys and
// empty values are all rejected, so a returned Dictionary is always complete.
func ParseDictionary(locale Locale, data []byte, logger *zap.Logger) (*Dictionary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var content Content
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&content); err != nil {
		return nil, fmt.Errorf("decode %s dictionary: %w", locale, err)
	}
	if missing := missingKeys(reflect.ValueOf(content), ""); len(missing) > 0 {
		return nil, fmt.Errorf("%s dictionary incomplete: missing %s", locale, strings.Join(missing, ", "))
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode %s dictionary tree: %w", locale, err)
	}

	d := &Dictionary{
		locale:  locale,
		content: content,
		tree:    tree,
		logger:  logger.With(zap.String("locale", string(locale))),
	}
	// The typed decode matches keys case-insensitively; lookups walk the tree exactly.
	if extra := unknownKeys(d.Keys()); len(extra) > 0 {
		return nil, fmt.Errorf("%s dictionary has keys outside the schema: %s", locale, strings.Join(extra, ", "))
	}
	return d, nil
}

// schemaKeys are the leaf paths of Content as spelled by its json tags.
var schemaKeys = leafPaths(reflect.TypeOf(Content{}), "")

func leafPaths(t reflect.Type, prefix string) map[string]struct{} {
	out := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			for p := range leafPaths(f.Type, path) {
				out[p] = struct{}{}
			}
			continue
		}
		out[path] = struct{}{}
	}
	return out
}

// unknownKeys returns the paths in keys that the schema does not spell exactly.
func unknownKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := schemaKeys[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// missingKeys walks the Content schema and returns the dotted paths of empty string leaves.
func missingKeys(v reflect.Value, prefix string) []string {
	var out []string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			out = append(out, missingKeys(fv, path)...)
		case reflect.String:
			if strings.TrimSpace(fv.String()) == "" {
				out = append(out, path)
			}
		}
	}
	return out
}

// Locale returns the locale this dictionary was loaded for.
func (d *Dictionary) Locale() Locale {
	return d.locale
}

// Content returns the typed strings. The value is a copy.
func (d *Dictionary) Content() Content {
	return d.content
}

// Lookup resolves a dot-separated path to a string leaf.
// Reports false when any segment is absent or the target is not a string.
func (d *Dictionary) Lookup(path string) (string, bool) {
	var node any = d.tree
	for _, seg := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	s, ok := node.(string)
	return s, ok
}

// T returns the translation for path, or path itself when it does not resolve.
// Misses are logged and counted so they surface before users report them.
func (d *Dictionary) T(path string) string {
	if s, ok := d.Lookup(path); ok {
		return s
	}
	d.logger.Warn("translation key missing", zap.String("key", path))
	observability.TranslationMissesTotal.WithLabelValues(string(d.locale)).Inc()
	return path
}

// Keys returns every leaf path in sorted order.
func (d *Dictionary) Keys() []string {
	var keys []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(path, child)
				continue
			}
			keys = append(keys, path)
		}
	}
	walk("", d.tree)
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the dictionary in its document form.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.content)
}
