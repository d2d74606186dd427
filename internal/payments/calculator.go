package payments

import (
	"github.com/shopspring/decimal"

	"github.com/piersideeats/dispatch-backend/pkg/enums"
	pkgerrors "github.com/piersideeats/dispatch-backend/pkg/errors"
)

// CalculateInput are the delivery facts the payment math runs on.
type CalculateInput struct {
	DistanceKm        float64
	DeliveryMinutes   int
	EfficiencyPercent float64
	Peak              bool
	Weather           enums.WeatherCondition
}

// RiderBreakdown itemizes a rider payment. Every component is already
// rounded to two decimals; Total is the sum of the components.
type RiderBreakdown struct {
	Base              decimal.Decimal `json:"base_payment"`
	Distance          decimal.Decimal `json:"distance_payment"`
	Time              decimal.Decimal `json:"time_payment"`
	EfficiencyBonus   decimal.Decimal `json:"efficiency_bonus"`
	PeakBonus         decimal.Decimal `json:"peak_hour_bonus"`
	WeatherBonus      decimal.Decimal `json:"weather_bonus"`
	LongDistanceBonus decimal.Decimal `json:"long_distance_bonus"`
	Total             decimal.Decimal `json:"total_payment"`
}

// CustomerBreakdown itemizes a customer charge.
type CustomerBreakdown struct {
	Base                  decimal.Decimal `json:"base_fee"`
	Distance              decimal.Decimal `json:"distance_charge"`
	Time                  decimal.Decimal `json:"time_charge"`
	PeakSurcharge         decimal.Decimal `json:"peak_hour_surcharge"`
	WeatherSurcharge      decimal.Decimal `json:"weather_surcharge"`
	LongDistanceSurcharge decimal.Decimal `json:"long_distance_surcharge"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Total                 decimal.Decimal `json:"total_charge"`
	ProfitMargin          decimal.Decimal `json:"profit_margin"`
}

// Breakdown pairs both sides of one delivery's payment math.
type Breakdown struct {
	Rider    RiderBreakdown    `json:"rider_payment"`
	Customer CustomerBreakdown `json:"customer_charge"`
}

// Calculate runs the full payment math for one delivery. It is pure:
// the same input and settings always produce the identical breakdown.
func Calculate(in CalculateInput, s Settings) (*Breakdown, error) {
	if err := validateCalculateInput(in); err != nil {
		return nil, err
	}

	rider := riderPayment(in, s)
	customer := customerCharge(in, s)
	return &Breakdown{Rider: rider, Customer: customer}, nil
}

func riderPayment(in CalculateInput, s Settings) RiderBreakdown {
	km := decimal.NewFromFloat(in.DistanceKm)
	minutes := decimal.NewFromInt(int64(in.DeliveryMinutes))

	base := s.RiderBaseFee.RoundBank(2)
	distance := km.Mul(s.RiderPerKmRate).RoundBank(2)
	timePay := minutes.Mul(s.RiderPerMinuteRate).RoundBank(2)
	subtotal := base.Add(distance).Add(timePay)

	efficiency := decimal.Zero.RoundBank(2)
	if decimal.NewFromFloat(in.EfficiencyPercent).GreaterThanOrEqual(s.EfficiencyThreshold) {
		efficiency = subtotal.Mul(s.EfficiencyBonusRate).RoundBank(2)
	}
	peak := decimal.Zero.RoundBank(2)
	if in.Peak {
		peak = subtotal.Mul(s.PeakBonusRate).RoundBank(2)
	}
	weather := decimal.Zero.RoundBank(2)
	if in.Weather.IsAdverse() {
		weather = subtotal.Mul(s.WeatherBonusRate).RoundBank(2)
	}
	longDistance := decimal.Zero.RoundBank(2)
	if km.GreaterThan(s.LongDistanceKm) {
		longDistance = distance.Mul(s.LongDistanceRate).RoundBank(2)
	}

	return RiderBreakdown{
		Base:              base,
		Distance:          distance,
		Time:              timePay,
		EfficiencyBonus:   efficiency,
		PeakBonus:         peak,
		WeatherBonus:      weather,
		LongDistanceBonus: longDistance,
		Total:             subtotal.Add(efficiency).Add(peak).Add(weather).Add(longDistance),
	}
}

func customerCharge(in CalculateInput, s Settings) CustomerBreakdown {
	km := decimal.NewFromFloat(in.DistanceKm)
	minutes := decimal.NewFromInt(int64(in.DeliveryMinutes))

	base := s.CustomerBaseFee.RoundBank(2)
	distance := km.Mul(s.CustomerPerKmRate).RoundBank(2)
	timeCharge := minutes.Mul(s.CustomerPerMinuteRate).RoundBank(2)
	core := base.Add(distance).Add(timeCharge)

	peak := decimal.Zero.RoundBank(2)
	if in.Peak {
		peak = core.Mul(s.CustomerPeakRate).RoundBank(2)
	}
	weather := decimal.Zero.RoundBank(2)
	if in.Weather.IsAdverse() {
		weather = core.Mul(s.CustomerWeatherRate).RoundBank(2)
	}
	longDistance := decimal.Zero.RoundBank(2)
	if km.GreaterThan(s.LongDistanceKm) {
		longDistance = distance.Mul(s.CustomerLongDistRate).RoundBank(2)
	}

	subtotal := core.Add(peak).Add(weather).Add(longDistance)
	total := subtotal.Mul(s.CustomerMargin).RoundBank(2)

	return CustomerBreakdown{
		Base:                  base,
		Distance:              distance,
		Time:                  timeCharge,
		PeakSurcharge:         peak,
		WeatherSurcharge:      weather,
		LongDistanceSurcharge: longDistance,
		Subtotal:              subtotal,
		Total:                 total,
		ProfitMargin:          total.Sub(subtotal),
	}
}

func validateCalculateInput(in CalculateInput) error {
	if in.DistanceKm < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "distance cannot be negative")
	}
	if in.DeliveryMinutes < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery minutes cannot be negative")
	}
	if in.EfficiencyPercent < 0 || in.EfficiencyPercent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "efficiency percentage must be in [0, 100]")
	}
	if in.Weather != "" && !in.Weather.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown weather condition")
	}
	return nil
}
