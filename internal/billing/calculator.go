// Package billing holds the pure money and duration arithmetic of interventions.
package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Validation failures; callers match them with errors.Is.
var (
	ErrNonFinite          = apperrors.NewValidationError("values must be finite numbers", map[string]any{"rule": "finite"})
	ErrNegativeUnits      = apperrors.NewValidationError("units cannot be negative", map[string]any{"rule": "units_non_negative"})
	ErrNegativePrice      = apperrors.NewValidationError("price cannot be negative", map[string]any{"rule": "price_non_negative"})
	ErrDiscountOutOfRange = apperrors.NewValidationError("discount must be between 0 and 100", map[string]any{"rule": "discount_range"})
	ErrUnitsScale         = apperrors.NewValidationError("units allow at most 4 decimals", map[string]any{"rule": "units_scale", "param": UnitPlaces})
	ErrPriceScale         = apperrors.NewValidationError("price allows at most 4 decimals", map[string]any{"rule": "price_scale", "param": UnitPlaces})
	ErrDiscountScale      = apperrors.NewValidationError("discount allows at most 2 decimals", map[string]any{"rule": "discount_scale", "param": DiscountPlaces})
	ErrUnitsTooLarge      = apperrors.NewValidationError("units exceed the maximum", map[string]any{"rule": "units_max"})
	ErrPriceTooLarge      = apperrors.NewValidationError("price exceeds the maximum", map[string]any{"rule": "price_max"})
	ErrTotalTooLarge      = apperrors.NewValidationError("line total exceeds the maximum", map[string]any{"rule": "total_max"})
	ErrInvalidTimestamp   = apperrors.NewValidationError("invalid timestamp", map[string]any{"rule": "timestamp"})
	ErrEndBeforeStart     = apperrors.NewValidationError("end timestamp is before start timestamp", map[string]any{"rule": "end_after_start"})
)

// Stored decimals and integer digits of material columns.
const (
	MoneyPlaces    = 2
	UnitPlaces     = 4
	DiscountPlaces = 2

	unitDigits  = 10
	totalDigits = 12
)

var (
	hundred  = decimal.NewFromInt(100)
	maxUnit  = decimal.New(1, unitDigits)
	maxTotal = decimal.New(1, totalDigits)
)

// LineTotal computes units × price × (1 − discount/100) rounded half away from zero
// to two decimals. Arithmetic is exact decimal, so no binary float residue is kept.
func LineTotal(units, unitPrice, discountPercent float64) (decimal.Decimal, error) {
	if !finite(units) || !finite(unitPrice) || !finite(discountPercent) {
		return decimal.Zero, ErrNonFinite
	}
	return LineTotalDecimal(decimal.NewFromFloat(units), decimal.NewFromFloat(unitPrice), decimal.NewFromFloat(discountPercent))
}

// LineTotalDecimal is LineTotal over values that are already decimals.
func LineTotalDecimal(units, unitPrice, discountPercent decimal.Decimal) (decimal.Decimal, error) {
	if units.IsNegative() {
		return decimal.Zero, ErrNegativeUnits
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return decimal.Zero, ErrDiscountOutOfRange
	}
	switch {
	case !fits(units, UnitPlaces):
		return decimal.Zero, ErrUnitsScale
	case !fits(unitPrice, UnitPlaces):
		return decimal.Zero, ErrPriceScale
	case !fits(discountPercent, DiscountPlaces):
		return decimal.Zero, ErrDiscountScale
	case units.GreaterThanOrEqual(maxUnit):
		return decimal.Zero, ErrUnitsTooLarge
	case unitPrice.GreaterThanOrEqual(maxUnit):
		return decimal.Zero, ErrPriceTooLarge
	}
	factor := hundred.Sub(discountPercent).Div(hundred)
	total := units.Mul(unitPrice).Mul(factor).Round(MoneyPlaces)
	if total.GreaterThanOrEqual(maxTotal) {
		return decimal.Zero, ErrTotalTooLarge
	}
	return total, nil
}

// fits reports whether d has no significant digits beyond places decimals.
func fits(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// DurationMinutes returns the whole minutes elapsed from start to end, truncated.
// A nil bound yields nil without any computation.
func DurationMinutes(start, end *time.Time) (*int, error) {
	if start == nil || end == nil {
		return nil, nil
	}
	if start.IsZero() || end.IsZero() {
		return nil, ErrInvalidTimestamp
	}
	if end.Before(*start) {
		return nil, ErrEndBeforeStart
	}
	minutes := int(end.Sub(*start) / time.Minute)
	return &minutes, nil
}

// ParseTimestamp parses an ISO-8601 timestamp as sent by clients.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// ParseOptionalTimestamp parses value when present; nil stays nil.
func ParseOptionalTimestamp(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := ParseTimestamp(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
