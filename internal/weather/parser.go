package weather

import (
	"encoding/json"

	"github.com/sakif/weather-diary/internal/apperror"
	"github.com/sakif/weather-diary/internal/model"
)

// Reading is the subset of a current-weather response the diary keeps.
type Reading struct {
	Temp float64 `json:"temp"` // main.temp, Kelvin
	Main string  `json:"main"` // weather[0].main
	Icon string  `json:"icon"` // weather[0].icon
}

// Snapshot stamps the reading with a date. The result has no ID until stored.
func (r Reading) Snapshot(date model.Date) model.WeatherSnapshot {
	return model.WeatherSnapshot{
		Date:        date,
		Condition:   r.Main,
		Icon:        r.Icon,
		Temperature: r.Temp,
	}
}

// Pointer fields tell a missing key apart from a zero value.
type payload struct {
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main *string `json:"main"`
		Icon *string `json:"icon"`
	} `json:"weather"`
}

// Parse extracts main.temp, weather[0].main and weather[0].icon from text.
//
// Any deviation from that shape, including text that is not JSON at all such
// as an error page or FailedResponse, returns an apperror.ErrBadPayload error
// and a zero Reading.
func Parse(text string) (Reading, error) {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Reading{}, apperror.BadPayload("weather payload is not a JSON object", err)
	}

	if p.Main == nil || p.Main.Temp == nil {
		return Reading{}, apperror.BadPayload("weather payload has no main.temp", nil)
	}
	if len(p.Weather) == 0 {
		return Reading{}, apperror.BadPayload("weather payload has no weather entries", nil)
	}
	first := p.Weather[0]
	if first.Main == nil || first.Icon == nil {
		return Reading{}, apperror.BadPayload("weather payload has no weather[0].main or weather[0].icon", nil)
	}

	return Reading{
		Temp: *p.Main.Temp,
		Main: *first.Main,
		Icon: *first.Icon,
	}, nil
}
