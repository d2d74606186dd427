package enums

import "fmt"

// WeatherCondition feeds the delivery time estimate and the adverse
// weather surcharge.
type WeatherCondition string

const (
	WeatherNormal WeatherCondition = "normal"
	WeatherRain   WeatherCondition = "rain"
	WeatherSnow   WeatherCondition = "snow"
	WeatherStorm  WeatherCondition = "storm"
)

var validWeatherConditions = []WeatherCondition{
	WeatherNormal,
	WeatherRain,
	WeatherSnow,
	WeatherStorm,
}

// String implements fmt.Stringer.
func (w WeatherCondition) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WeatherCondition.
func (w WeatherCondition) IsValid() bool {
	for _, candidate := range validWeatherConditions {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsAdverse reports whether the condition triggers the adverse weather
// surcharge.
func (w WeatherCondition) IsAdverse() bool {
	return w == WeatherRain || w == WeatherSnow || w == WeatherStorm
}

// ParseWeatherCondition converts raw input into a WeatherCondition.
func ParseWeatherCondition(value string) (WeatherCondition, error) {
	for _, candidate := range validWeatherConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid weather condition %q", value)
}
