package payments

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
)

func launchSettings() Settings {
	return Settings{
		Version:               1,
		RiderBaseFee:          decimal.RequireFromString("3.50"),
		RiderPerKmRate:        decimal.RequireFromString("0.75"),
		RiderPerMinuteRate:    decimal.RequireFromString("0.15"),
		EfficiencyThreshold:   decimal.RequireFromString("70"),
		EfficiencyBonusRate:   decimal.RequireFromString("0.25"),
		PeakBonusRate:         decimal.RequireFromString("0.20"),
		WeatherBonusRate:      decimal.RequireFromString("0.15"),
		LongDistanceKm:        decimal.RequireFromString("5"),
		LongDistanceRate:      decimal.RequireFromString("0.10"),
		CustomerBaseFee:       decimal.RequireFromString("2.99"),
		CustomerPerKmRate:     decimal.RequireFromString("0.50"),
		CustomerPerMinuteRate: decimal.RequireFromString("0.10"),
		CustomerPeakRate:      decimal.RequireFromString("0.15"),
		CustomerWeatherRate:   decimal.RequireFromString("0.10"),
		CustomerLongDistRate:  decimal.RequireFromString("0.05"),
		CustomerMargin:        decimal.RequireFromString("1.35"),
		MinimumPayout:         decimal.RequireFromString("25.00"),
		ProcessingFee:         decimal.RequireFromString("1.50"),
	}
}

func assertAmount(t *testing.T, name, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestCalculate_shortOffPeakDelivery(t *testing.T) {
	// Bournemouth pier to the town centre: 0.42 km, 9 minute estimate.
	in := CalculateInput{
		DistanceKm:        0.42,
		DeliveryMinutes:   9,
		EfficiencyPercent: 85,
		Peak:              false,
		Weather:           enums.WeatherNormal,
	}
	got, err := Calculate(in, launchSettings())
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	assertAmount(t, "rider base", "3.50", got.Rider.Base)
	assertAmount(t, "rider distance", "0.32", got.Rider.Distance)
	assertAmount(t, "rider time", "1.35", got.Rider.Time)
	assertAmount(t, "rider efficiency bonus", "1.29", got.Rider.EfficiencyBonus)
	assertAmount(t, "rider peak bonus", "0.00", got.Rider.PeakBonus)
	assertAmount(t, "rider weather bonus", "0.00", got.Rider.WeatherBonus)
	assertAmount(t, "rider long distance", "0.00", got.Rider.LongDistanceBonus)
	assertAmount(t, "rider total", "6.46", got.Rider.Total)

	assertAmount(t, "customer base", "2.99", got.Customer.Base)
	assertAmount(t, "customer distance", "0.21", got.Customer.Distance)
	assertAmount(t, "customer time", "0.90", got.Customer.Time)
	assertAmount(t, "customer subtotal", "4.10", got.Customer.Subtotal)
	assertAmount(t, "customer total", "5.54", got.Customer.Total)
	assertAmount(t, "profit margin", "1.44", got.Customer.ProfitMargin)
}

func TestCalculate_longPeakStormDelivery(t *testing.T) {
	in := CalculateInput{
		DistanceKm:        6.00,
		DeliveryMinutes:   34,
		EfficiencyPercent: 65,
		Peak:              true,
		Weather:           enums.WeatherStorm,
	}
	got, err := Calculate(in, launchSettings())
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	assertAmount(t, "rider distance", "4.50", got.Rider.Distance)
	assertAmount(t, "rider time", "5.10", got.Rider.Time)
	assertAmount(t, "rider efficiency bonus", "0.00", got.Rider.EfficiencyBonus)
	assertAmount(t, "rider peak bonus", "2.62", got.Rider.PeakBonus)
	assertAmount(t, "rider weather bonus", "1.96", got.Rider.WeatherBonus)
	assertAmount(t, "rider long distance", "0.45", got.Rider.LongDistanceBonus)
	assertAmount(t, "rider total", "18.13", got.Rider.Total)

	assertAmount(t, "customer peak surcharge", "1.41", got.Customer.PeakSurcharge)
	assertAmount(t, "customer weather surcharge", "0.94", got.Customer.WeatherSurcharge)
	assertAmount(t, "customer long distance", "0.15", got.Customer.LongDistanceSurcharge)
	assertAmount(t, "customer subtotal", "11.89", got.Customer.Subtotal)
	assertAmount(t, "customer total", "16.05", got.Customer.Total)
	assertAmount(t, "profit margin", "4.16", got.Customer.ProfitMargin)
}

func TestCalculate_bonusThresholdBoundary(t *testing.T) {
	settings := launchSettings()
	below := CalculateInput{DistanceKm: 1, DeliveryMinutes: 10, EfficiencyPercent: 69.99, Weather: enums.WeatherNormal}
	at := CalculateInput{DistanceKm: 1, DeliveryMinutes: 10, EfficiencyPercent: 70.00, Weather: enums.WeatherNormal}

	gotBelow, err := Calculate(below, settings)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	gotAt, err := Calculate(at, settings)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	if !gotBelow.Rider.EfficiencyBonus.IsZero() {
		t.Fatalf("69.99%% should earn no bonus, got %s", gotBelow.Rider.EfficiencyBonus)
	}
	if gotAt.Rider.EfficiencyBonus.IsZero() {
		t.Fatal("70.00%% should earn the bonus")
	}
}

func TestCalculate_zeroInputs(t *testing.T) {
	in := CalculateInput{EfficiencyPercent: 100, Weather: enums.WeatherNormal}
	got, err := Calculate(in, launchSettings())
	if err != nil {
		t.Fatalf("zero distance and time must be accepted: %v", err)
	}
	assertAmount(t, "rider total", "4.38", got.Rider.Total)
	assertAmount(t, "customer total", "4.04", got.Customer.Total)
}

func TestCalculate_invalidInputs(t *testing.T) {
	settings := launchSettings()
	tests := []struct {
		name string
		in   CalculateInput
	}{
		{name: "negative distance", in: CalculateInput{DistanceKm: -1}},
		{name: "negative minutes", in: CalculateInput{DeliveryMinutes: -5}},
		{name: "efficiency below zero", in: CalculateInput{EfficiencyPercent: -0.1}},
		{name: "efficiency above hundred", in: CalculateInput{EfficiencyPercent: 100.1}},
		{name: "unknown weather", in: CalculateInput{Weather: enums.WeatherCondition("hail")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Calculate(tc.in, settings); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCalculate_deterministic(t *testing.T) {
	in := CalculateInput{
		DistanceKm:        0.42,
		DeliveryMinutes:   9,
		EfficiencyPercent: 85,
		Weather:           enums.WeatherNormal,
	}
	settings := launchSettings()

	first, err := Calculate(in, settings)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}
	second, err := Calculate(in, settings)
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated calculation differs: %+v vs %+v", first, second)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("serialized breakdowns differ:\n%s\n%s", firstJSON, secondJSON)
	}
}
