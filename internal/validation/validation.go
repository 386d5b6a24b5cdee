package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ponyclubacheron/site-service/internal/models"
)

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90] or not a number.
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180] or not a number.
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ErrLocationNameEmpty is returned when the display name is empty or whitespace-only.
var ErrLocationNameEmpty = errors.New("location name is required")

// ErrLocationNameTooLong is returned when the display name exceeds the maximum length.
var ErrLocationNameTooLong = errors.New("location name too long")

// ErrLocationNameInvalidChars is returned when the display name contains disallowed characters.
var ErrLocationNameInvalidChars = errors.New("location name contains invalid characters")

// MaxLocationNameLen bounds display names in runes.
const MaxLocationNameLen = 100

// ValidateCoordinates checks that lat and lon are finite and within geographic bounds.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeOutOfRange, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeOutOfRange, lon)
	}
	return nil
}

// ValidateLocationName trims the input, enforces the length bound and restricts to
// letters (Unicode), digits, space, comma, period, apostrophe and hyphen.
// Returns the trimmed name.
func ValidateLocationName(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrLocationNameEmpty
	}
	if len(r) > MaxLocationNameLen {
		return "", ErrLocationNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrLocationNameInvalidChars
		}
	}
	return s, nil
}

// ValidateLocation checks a configured location and returns it with the name trimmed.
func ValidateLocation(loc models.Location) (models.Location, error) {
	name, err := ValidateLocationName(loc.Name)
	if err != nil {
		return models.Location{}, err
	}
	if err := ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
		return models.Location{}, err
	}
	loc.Name = name
	return loc, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
