// Package pricing holds the line arithmetic shared by the order backend and the console.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// LineTotal returns salePrice * (1 - discountPercent/100) * quantity.
func LineTotal(salePrice decimal.Decimal, discountPercent decimal.Decimal, quantity int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(ClampDiscount(discountPercent).Div(hundred))
	return salePrice.Mul(factor).Mul(decimal.NewFromInt(int64(FloorQuantity(quantity))))
}

// FloorQuantity coerces quantities below one to one.
func FloorQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}

// ClampDiscount bounds a discount percentage to [0, 100].
func ClampDiscount(percent decimal.Decimal) decimal.Decimal {
	if percent.LessThan(zero) {
		return zero
	}
	if percent.GreaterThan(hundred) {
		return hundred
	}
	return percent
}

// ParseDiscount converts raw operator input into a clamped percentage.
// Empty or unparsable input yields zero.
func ParseDiscount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if raw == "" {
		return zero
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return zero
	}
	return ClampDiscount(value)
}
