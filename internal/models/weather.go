package models

import (
	"fmt"
	"strconv"
)

// WeatherSnapshot is one normalized current-conditions reading. JSON field names
// are the ones the page widget consumes.
type WeatherSnapshot struct {
	Temperature   int     `json:"temperature"`
	TemperatureF  int     `json:"temperatureF"`
	Condition     string  `json:"condition"`
	Icon          string  `json:"icon"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     int     `json:"windSpeed"`
	WindDirection string  `json:"windDirection"`
	FeelsLike     int     `json:"feelsLike"`
	FeelsLikeF    int     `json:"feelsLikeF"`
	UVIndex       float64 `json:"uvIndex"`
	Location      string  `json:"location"`
	LastUpdated   string  `json:"lastUpdated"`
	IsDay         int     `json:"isDay"`
	CloudCover    float64 `json:"cloudCover"`
	Pressure      float64 `json:"pressure"`
	Precipitation float64 `json:"precipitation"`
}

// Location is a named point the weather service reports on.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Query returns the "lat,lon" form used by the upstream q parameter.
func (l Location) Query() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// CacheKey returns the cache key for this point, rounded to 4 decimals (~11m).
func (l Location) CacheKey() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}
