package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pricing"
)

const deliveryDateLayout = "2006-01-02"

// ValidateSaveRequest checks the fields the cart must always carry.
func ValidateSaveRequest(req SaveRequest) error {
	if req.ClientID <= 0 {
		return ErrClientRequired
	}
	if len(req.Items) == 0 {
		return ErrItemsRequired
	}
	for i, it := range req.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("item %d: %w", i+1, ErrProductNotFound)
		}
	}
	return nil
}

// ValidateConfirmRequest parses the delivery date and rejects dates before today.
func ValidateConfirmRequest(req ConfirmRequest, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(req.DeliveryDate)
	if raw == "" {
		return time.Time{}, ErrDeliveryDateRequired
	}
	date, err := time.ParseInLocation(deliveryDateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDeliveryDateRequired, raw)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return time.Time{}, ErrInvalidDeliveryDate
	}
	return date, nil
}

// ValidatePaymentRequest checks amount and reference rules.
func ValidatePaymentRequest(req PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if req.Reference != nil && strings.TrimSpace(*req.Reference) != "" && req.Method != PaymentTransfer {
		return ErrReferenceNotAllowed
	}
	return nil
}

// normalizeItems merges repeated products and coerces quantity and discount
// into their legal ranges. First occurrence wins the line position.
func normalizeItems(in []ItemInput) []ItemInput {
	out := make([]ItemInput, 0, len(in))
	index := make(map[int64]int, len(in))
	for _, it := range in {
		it.Quantity = pricing.FloorQuantity(it.Quantity)
		it.DiscountPercent = pricing.ClampDiscount(it.DiscountPercent)
		if pos, ok := index[it.ProductID]; ok {
			out[pos].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}
