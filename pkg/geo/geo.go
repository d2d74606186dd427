// Package geo provides the pure distance and delivery time estimation
// primitives used by dispatch and payment calculation. No I/O.
package geo

import (
	"math"
	"time"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

const earthRadiusKm = 6371.0

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine great-circle distance between two
// points in kilometres, rounded to two decimal places.
func Distance(from, to LatLng) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return round2(earthRadiusKm * c)
}

// EstimateDeliveryMinutes converts a distance into an expected delivery
// duration. Base pickup time is 5 minutes, travel is 2 minutes per km,
// dropoff is 3 minutes; the sum is inflated by peak and weather
// multipliers and rounded to the nearest whole minute.
func EstimateDeliveryMinutes(distanceKm float64, peak bool, weather enums.WeatherCondition) int {
	minutes := 5 + 2*distanceKm + 3

	if peak {
		minutes *= 1.2
	}
	minutes *= weatherMultiplier(weather)

	return int(math.Round(minutes))
}

// IsPeakHour reports whether the hour falls inside the lunch (11:00 to
// 14:59) or dinner (17:00 to 20:59) rush.
func IsPeakHour(hour int) bool {
	return (hour >= 11 && hour <= 14) || (hour >= 17 && hour <= 20)
}

// IsPeakTime reports whether t falls inside a peak window.
func IsPeakTime(t time.Time) bool {
	return IsPeakHour(t.Hour())
}

func weatherMultiplier(weather enums.WeatherCondition) float64 {
	switch weather {
	case enums.WeatherRain:
		return 1.15
	case enums.WeatherSnow:
		return 1.3
	case enums.WeatherStorm:
		return 1.4
	default:
		return 1.0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
