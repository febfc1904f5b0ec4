package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material is a billable line item consumed during an intervention.
// Total is stored and must be recalculated whenever units, price or discount change.
type Material struct {
	ID             string
	InterventionID string
	ArticleCode    string
	Units          decimal.Decimal
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
