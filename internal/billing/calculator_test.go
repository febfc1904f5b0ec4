package billing

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		units    float64
		price    float64
		discount float64
		want     string
	}{
		{"discounted pair", 2, 15.50, 10, "27.90"},
		{"no discount", 1, 25, 0, "25.00"},
		{"half cent rounds down", 3, 9.99, 15, "25.47"},
		{"float residue", 0.1, 0.2, 0, "0.02"},
		{"zero units", 0, 99.99, 5, "0.00"},
		{"zero price", 7, 0, 5, "0.00"},
		{"full discount", 4, 12.5, 100, "0.00"},
		{"half away from zero", 1, 0.125, 0, "0.13"},
		{"fractional units", 1.5, 10.01, 0, "15.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LineTotal(tt.units, tt.price, tt.discount)
			if err != nil {
				t.Fatalf("LineTotal(%v, %v, %v) unexpected error: %v", tt.units, tt.price, tt.discount, err)
			}
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("LineTotal(%v, %v, %v) = %s, expected %s", tt.units, tt.price, tt.discount, got, want)
			}
			if got.StringFixed(MoneyPlaces) != tt.want {
				t.Errorf("StringFixed = %s, expected %s", got.StringFixed(MoneyPlaces), tt.want)
			}
		})
	}
}

func TestLineTotalValidation(t *testing.T) {
	tests := []struct {
		name     string
		units    float64
		price    float64
		discount float64
		want     error
	}{
		{"nan units", math.NaN(), 1, 0, ErrNonFinite},
		{"inf price", 1, math.Inf(1), 0, ErrNonFinite},
		{"inf discount", 1, 1, math.Inf(-1), ErrNonFinite},
		{"negative units", -1, 1, 0, ErrNegativeUnits},
		{"negative price", 1, -0.01, 0, ErrNegativePrice},
		{"discount below zero", 1, 1, -1, ErrDiscountOutOfRange},
		{"discount above hundred", 1, 1, 100.5, ErrDiscountOutOfRange},
		{"units scale", 1.00005, 10000, 0, ErrUnitsScale},
		{"price scale", 1, 0.12345, 0, ErrPriceScale},
		{"discount scale", 1, 10000, 12.345, ErrDiscountScale},
		{"units too large", 1e10, 1, 0, ErrUnitsTooLarge},
		{"price too large", 1, 1e10, 0, ErrPriceTooLarge},
		{"total too large", 9999999999, 9999999999, 0, ErrTotalTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LineTotal(tt.units, tt.price, tt.discount)
			if !errors.Is(err, tt.want) {
				t.Fatalf("LineTotal error = %v, expected %v", err, tt.want)
			}
			if !apperrors.IsKind(err, apperrors.KindValidation) {
				t.Errorf("expected validation kind, got %s", apperrors.KindOf(err))
			}
		})
	}
}

func TestLineTotalColumnLimits(t *testing.T) {
	units := decimal.RequireFromString("9999999999.9999")
	if _, err := LineTotalDecimal(units, decimal.RequireFromString("99.9999"), decimal.Zero); err != nil {
		t.Fatalf("largest total within limits rejected: %v", err)
	}
	got, err := LineTotalDecimal(decimal.RequireFromString("1.50000"), decimal.RequireFromString("2.0000"), decimal.RequireFromString("10.00"))
	if err != nil {
		t.Fatalf("trailing zeros rejected: %v", err)
	}
	if got.StringFixed(MoneyPlaces) != "2.70" {
		t.Errorf("total = %s, expected 2.70", got)
	}
	for _, pair := range [][2]error{{ErrUnitsScale, ErrPriceScale}, {ErrUnitsTooLarge, ErrTotalTooLarge}, {ErrDiscountScale, ErrDiscountOutOfRange}} {
		if errors.Is(pair[0], pair[1]) {
			t.Errorf("%v and %v must be distinguishable", pair[0], pair[1])
		}
	}
}

func TestLineTotalProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		units := math.Floor(rng.Float64()*10000*1000) / 1000
		price := math.Floor(rng.Float64()*10000*100) / 100
		discount := math.Floor(rng.Float64()*100*100) / 100

		got, err := LineTotal(units, price, discount)
		if err != nil {
			t.Fatalf("LineTotal(%v, %v, %v) unexpected error: %v", units, price, discount, err)
		}
		upper := decimal.NewFromFloat(units).Mul(decimal.NewFromFloat(price)).Round(MoneyPlaces)
		if got.IsNegative() || got.GreaterThan(upper) {
			t.Fatalf("LineTotal(%v, %v, %v) = %s outside [0, %s]", units, price, discount, got, upper)
		}
		if !got.Equal(got.Round(MoneyPlaces)) {
			t.Fatalf("LineTotal(%v, %v, %v) = %s has more than two decimals", units, price, discount, got)
		}
		full, err := LineTotal(units, price, 100)
		if err != nil || !full.IsZero() {
			t.Fatalf("LineTotal(%v, %v, 100) = %s, %v; expected 0", units, price, full, err)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	base := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := base.Add(d)
		return &v
	}
	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  int
	}{
		{"half hour", at(0), at(30 * time.Minute), 30},
		{"same instant", at(0), at(0), 0},
		{"59 seconds", at(0), at(59 * time.Second), 0},
		{"90 seconds", at(0), at(90 * time.Second), 1},
		{"across days", at(0), at(26*time.Hour + 5*time.Minute), 1565},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DurationMinutes(tt.start, tt.end)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || *got != tt.want {
				t.Fatalf("DurationMinutes = %v, expected %d", got, tt.want)
			}
		})
	}
}

func TestDurationMinutesAbsentBound(t *testing.T) {
	now := time.Now()
	for _, pair := range [][2]*time.Time{{nil, &now}, {&now, nil}, {nil, nil}} {
		got, err := DurationMinutes(pair[0], pair[1])
		if err != nil || got != nil {
			t.Errorf("DurationMinutes(%v, %v) = %v, %v; expected nil, nil", pair[0], pair[1], got, err)
		}
	}
}

func TestDurationMinutesErrors(t *testing.T) {
	start := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)
	before := start.Add(-time.Second)
	var zero time.Time

	if _, err := DurationMinutes(&start, &before); !errors.Is(err, ErrEndBeforeStart) {
		t.Errorf("end before start: got %v", err)
	}
	if _, err := DurationMinutes(&zero, &start); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("zero start: got %v", err)
	}
	if errors.Is(ErrEndBeforeStart, ErrInvalidTimestamp) {
		t.Errorf("duration errors must be distinguishable")
	}
}

func TestDurationMinutesMonotonic(t *testing.T) {
	start := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	prev := -1
	for s := 0; s < 4*3600; s += 17 {
		end := start.Add(time.Duration(s) * time.Second)
		got, err := DurationMinutes(&start, &end)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *got < prev {
			t.Fatalf("duration decreased at %ds: %d < %d", s, *got, prev)
		}
		prev = *got
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2024-01-01T10:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 10 || got.Minute() != 30 {
		t.Errorf("parsed %v", got)
	}
	if _, err := ParseTimestamp("yesterday"); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("expected ErrInvalidTimestamp, got %v", err)
	}
	if v, err := ParseOptionalTimestamp(nil); v != nil || err != nil {
		t.Errorf("ParseOptionalTimestamp(nil) = %v, %v", v, err)
	}
}
