package i18n

import (
	"errors"
	"fmt"
)

// Locale is a supported language tag.
type Locale string

const (
	English Locale = "en"
	Greek   Locale = "el"

	// DefaultLocale is the terminal fallback; its dictionary must always load.
	DefaultLocale = English
)

// ErrUnsupportedLocale is returned for any code outside the supported set.
// Routers translate it into a not-found response.
var ErrUnsupportedLocale = errors.New("unsupported locale")

var supportedLocales = []Locale{English, Greek}

// SupportedLocales returns the supported locales, default first.
func SupportedLocales() []Locale {
	out := make([]Locale, len(supportedLocales))
	copy(out, supportedLocales)
	return out
}

// ValidateLocale reports whether code is exactly one of the supported locales.
// No case folding or trimming is applied.
func ValidateLocale(code string) bool {
	for _, l := range supportedLocales {
		if string(l) == code {
			return true
		}
	}
	return false
}

// ParseLocale converts code into a Locale or returns ErrUnsupportedLocale.
func ParseLocale(code string) (Locale, error) {
	if !ValidateLocale(code) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, code)
	}
	return Locale(code), nil
}

// String implements fmt.Stringer.
func (l Locale) String() string {
	return string(l)
}
