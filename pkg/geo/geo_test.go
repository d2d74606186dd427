package geo

import (
	"testing"
	"time"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

func TestDistance(t *testing.T) {
	cases := []struct {
		name string
		from LatLng
		to   LatLng
		want float64
	}{
		{
			name: "same point",
			from: LatLng{Lat: 50.7184, Lng: -1.8805},
			to:   LatLng{Lat: 50.7184, Lng: -1.8805},
			want: 0,
		},
		{
			name: "short hop across town",
			from: LatLng{Lat: 50.7192, Lng: -1.8808},
			to:   LatLng{Lat: 50.7200, Lng: -1.8750},
			want: 0.42,
		},
		{
			name: "town centre to seafront",
			from: LatLng{Lat: 50.7184, Lng: -1.8805},
			to:   LatLng{Lat: 50.7352, Lng: -1.8636},
			want: 2.21,
		},
		{
			name: "bournemouth to southampton",
			from: LatLng{Lat: 50.7184, Lng: -1.8805},
			to:   LatLng{Lat: 50.9097, Lng: -1.4044},
			want: 39.64,
		},
		{
			name: "london to paris",
			from: LatLng{Lat: 51.5074, Lng: -0.1278},
			to:   LatLng{Lat: 48.8566, Lng: 2.3522},
			want: 343.56,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Distance(tc.from, tc.to); got != tc.want {
				t.Errorf("Distance = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := LatLng{Lat: 50.7192, Lng: -1.8808}
	b := LatLng{Lat: 50.7200, Lng: -1.8750}

	if Distance(a, b) != Distance(b, a) {
		t.Errorf("Distance(a,b) = %v, Distance(b,a) = %v", Distance(a, b), Distance(b, a))
	}
}

func TestEstimateDeliveryMinutes(t *testing.T) {
	const km = 0.42

	cases := []struct {
		name    string
		peak    bool
		weather enums.WeatherCondition
		want    int
	}{
		{"off-peak normal", false, enums.WeatherNormal, 9},
		{"off-peak rain", false, enums.WeatherRain, 10},
		{"off-peak snow", false, enums.WeatherSnow, 11},
		{"off-peak storm", false, enums.WeatherStorm, 12},
		{"peak normal", true, enums.WeatherNormal, 11},
		{"peak rain", true, enums.WeatherRain, 12},
		{"peak snow", true, enums.WeatherSnow, 14},
		{"peak storm", true, enums.WeatherStorm, 15},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateDeliveryMinutes(km, tc.peak, tc.weather); got != tc.want {
				t.Errorf("EstimateDeliveryMinutes = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateDeliveryMinutesZeroDistance(t *testing.T) {
	if got := EstimateDeliveryMinutes(0, false, enums.WeatherNormal); got != 8 {
		t.Errorf("EstimateDeliveryMinutes(0) = %d, want 8", got)
	}
}

func TestIsPeakHour(t *testing.T) {
	peak := map[int]bool{
		10: false, 11: true, 12: true, 14: true, 15: false,
		16: false, 17: true, 20: true, 21: false, 0: false,
	}
	for hour, want := range peak {
		if got := IsPeakHour(hour); got != want {
			t.Errorf("IsPeakHour(%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestIsPeakTime(t *testing.T) {
	lunch := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	if !IsPeakTime(lunch) {
		t.Error("IsPeakTime(12:30) = false, want true")
	}
	midAfternoon := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if IsPeakTime(midAfternoon) {
		t.Error("IsPeakTime(15:00) = true, want false")
	}
}
