package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ponyclubacheron/site-service/internal/models"
)

// ErrMalformedPayload marks an upstream body that failed the shape check.
var ErrMalformedPayload = errors.New("invalid weather data format received")

// PayloadError is the invalid branch of ValidatePayload. Reason names the first violation.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedPayload, e.Reason)
}

func (e *PayloadError) Unwrap() error {
	return ErrMalformedPayload
}

// Payload is a WeatherAPI.com current-conditions body that passed validation.
type Payload struct {
	Location PayloadLocation
	Current  PayloadCurrent
}

type PayloadLocation struct {
	Name      string
	Country   string
	Localtime string
}

type PayloadCurrent struct {
	LastUpdated   string
	TempC         float64
	TempF         float64
	ConditionText string
	ConditionIcon string
	ConditionCode int
	WindKph       float64
	WindMph       float64
	GustKph       float64
	WindDir       string
	Humidity      float64
	FeelsLikeC    float64
	FeelsLikeF    float64
	UV            float64
	IsDay         int
	Cloud         float64
	PressureMb    float64
	PrecipMm      float64
}

// wirePayload mirrors the upstream JSON. Required fields are pointers so absence is distinguishable from zero.
type wirePayload struct {
	Location *struct {
		Name      string `json:"name"`
		Country   string `json:"country"`
		Localtime string `json:"localtime"`
	} `json:"location"`
	Current *struct {
		LastUpdated *string  `json:"last_updated"`
		TempC       *float64 `json:"temp_c"`
		TempF       float64  `json:"temp_f"`
		Condition   *struct {
			Text *string `json:"text"`
			Icon string  `json:"icon"`
			Code int     `json:"code"`
		} `json:"condition"`
		WindKph    float64 `json:"wind_kph"`
		WindMph    float64 `json:"wind_mph"`
		GustKph    float64 `json:"gust_kph"`
		WindDir    string  `json:"wind_dir"`
		Humidity   float64 `json:"humidity"`
		FeelsLikeC float64 `json:"feelslike_c"`
		FeelsLikeF float64 `json:"feelslike_f"`
		UV         float64 `json:"uv"`
		IsDay      int     `json:"is_day"`
		Cloud      float64 `json:"cloud"`
		PressureMb float64 `json:"pressure_mb"`
		PrecipMm   float64 `json:"precip_mm"`
	} `json:"current"`
}

// ValidatePayload checks body against the required upstream shape: a location object,
// a current object with numeric temp_c, a condition object with string text, and a
// string last_updated. Any violation returns a *PayloadError.
func ValidatePayload(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Payload{}, &PayloadError{Reason: "empty body"}
	}

	var w wirePayload
	if err := json.Unmarshal(body, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Payload{}, &PayloadError{Reason: fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)}
		}
		return Payload{}, &PayloadError{Reason: "invalid JSON: " + err.Error()}
	}

	switch {
	case w.Location == nil:
		return Payload{}, &PayloadError{Reason: "missing location"}
	case w.Current == nil:
		return Payload{}, &PayloadError{Reason: "missing current"}
	case w.Current.TempC == nil:
		return Payload{}, &PayloadError{Reason: "missing current.temp_c"}
	case w.Current.Condition == nil:
		return Payload{}, &PayloadError{Reason: "missing current.condition"}
	case w.Current.Condition.Text == nil:
		return Payload{}, &PayloadError{Reason: "missing current.condition.text"}
	case w.Current.LastUpdated == nil:
		return Payload{}, &PayloadError{Reason: "missing current.last_updated"}
	}

	c := w.Current
	return Payload{
		Location: PayloadLocation{
			Name:      w.Location.Name,
			Country:   w.Location.Country,
			Localtime: w.Location.Localtime,
		},
		Current: PayloadCurrent{
			LastUpdated:   *c.LastUpdated,
			TempC:         *c.TempC,
			TempF:         c.TempF,
			ConditionText: *c.Condition.Text,
			ConditionIcon: c.Condition.Icon,
			ConditionCode: c.Condition.Code,
			WindKph:       c.WindKph,
			WindMph:       c.WindMph,
			GustKph:       c.GustKph,
			WindDir:       c.WindDir,
			Humidity:      c.Humidity,
			FeelsLikeC:    c.FeelsLikeC,
			FeelsLikeF:    c.FeelsLikeF,
			UV:            c.UV,
			IsDay:         c.IsDay,
			Cloud:         c.Cloud,
			PressureMb:    c.PressureMb,
			PrecipMm:      c.PrecipMm,
		},
	}, nil
}

// Normalize maps a validated payload to a snapshot labeled with the configured location name.
// Temperatures and wind speed are rounded to whole units; everything else passes through.
func Normalize(p Payload, label string) models.WeatherSnapshot {
	c := p.Current
	return models.WeatherSnapshot{
		Temperature:   roundHalfUp(c.TempC),
		TemperatureF:  roundHalfUp(c.TempF),
		Condition:     c.ConditionText,
		Icon:          c.ConditionIcon,
		Humidity:      c.Humidity,
		WindSpeed:     roundHalfUp(c.WindKph),
		WindDirection: c.WindDir,
		FeelsLike:     roundHalfUp(c.FeelsLikeC),
		FeelsLikeF:    roundHalfUp(c.FeelsLikeF),
		UVIndex:       c.UV,
		Location:      label,
		LastUpdated:   c.LastUpdated,
		IsDay:         c.IsDay,
		CloudCover:    c.Cloud,
		Pressure:      c.PressureMb,
		Precipitation: c.PrecipMm,
	}
}

// roundHalfUp rounds ties toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
