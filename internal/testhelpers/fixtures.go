package testhelpers

import (
	"encoding/json"
)

// WeatherAPIBody returns a WeatherAPI.com current.json body for Glyki with the given temperature.
// Pass mutate to remove or change fields before encoding.
func WeatherAPIBody(tempC float64, mutate func(doc map[string]any)) []byte {
	doc := map[string]any{
		"location": map[string]any{
			"name":      "Glyki",
			"country":   "Greece",
			"localtime": "2025-07-01 14:05",
		},
		"current": map[string]any{
			"last_updated": "2025-07-01 14:00",
			"temp_c":       tempC,
			"temp_f":       tempC*9/5 + 32,
			"condition": map[string]any{
				"text": "Sunny",
				"icon": "//cdn.weatherapi.com/weather/64x64/day/113.png",
				"code": 1000,
			},
			"wind_kph":    12.6,
			"wind_mph":    7.8,
			"gust_kph":    15.1,
			"wind_dir":    "NW",
			"humidity":    45,
			"feelslike_c": tempC + 1.2,
			"feelslike_f": (tempC+1.2)*9/5 + 32,
			"uv":          7.5,
			"is_day":      1,
			"cloud":       10,
			"pressure_mb": 1014.0,
			"precip_mm":   0.0,
		},
	}
	if mutate != nil {
		mutate(doc)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return body
}

// Current returns the "current" block of a WeatherAPIBody document for use inside mutate.
func Current(doc map[string]any) map[string]any {
	return doc["current"].(map[string]any)
}
