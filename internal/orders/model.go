// Package orders is the authoritative order store: draft quotations, the
// confirmation with partial payments and the pipeline up to delivery.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/pricing"
)

// PaymentMethod tags how a partial payment was received.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

// Order is a persisted order with its client snapshot and line items.
type Order struct {
	ID                   int64           `json:"id"`
	ClientID             int64           `json:"client_id"`
	ClientName           string          `json:"client_name"`
	ClientPhone          string          `json:"client_phone"`
	MunicipalitySnapshot *string         `json:"municipality_snapshot,omitempty"`
	Status               pipeline.Status `json:"status"`
	Notes                string          `json:"notes"`
	DeliveryAddress      *string         `json:"delivery_address,omitempty"`
	DeliveryDate         *time.Time      `json:"delivery_date,omitempty"`
	Latitude             *float64        `json:"latitude,omitempty"`
	Longitude            *float64        `json:"longitude,omitempty"`
	PaymentConfirmed     bool            `json:"payment_confirmed"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	DeliveryLatitude     *float64        `json:"delivery_latitude,omitempty"`
	DeliveryLongitude    *float64        `json:"delivery_longitude,omitempty"`
	Items                []Item          `json:"items"`
	Total                decimal.Decimal `json:"total"`
	Paid                 decimal.Decimal `json:"paid"`
	CreatedBy            int64           `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Item is an order line. Prices are snapshots taken when the line was saved.
type Item struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"-"`
	ProductID       int64           `json:"productId"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	LineOrder       int             `json:"-"`
}

// LineTotal returns the derived final price of the line.
func (i Item) LineTotal() decimal.Decimal {
	return pricing.LineTotal(i.SalePrice, i.DiscountPercent, i.Quantity)
}

// ComputeTotals refreshes the derived subtotal of each line and the order total.
func (o *Order) ComputeTotals() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = o.Items[i].LineTotal()
		total = total.Add(o.Items[i].Subtotal)
	}
	o.Total = total
}

// ItemIDs lists the persisted line ids in display order.
func (o *Order) ItemIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Payment is a partial payment recorded against an order.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Reference *string         `json:"reference,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// StatusChange is a row of the status history.
type StatusChange struct {
	OrderID   int64
	From      pipeline.Status
	To        pipeline.Status
	ActorID   int64
	Latitude  *float64
	Longitude *float64
	ChangedAt time.Time
}

// ClientSnapshot holds the client fields denormalised into an order.
type ClientSnapshot struct {
	ID           int64
	Name         string
	Phone        string
	Municipality *string
}

// ProductSnapshot holds the product fields copied into an order line.
type ProductSnapshot struct {
	ID          int64
	Description string
	SalePrice   decimal.Decimal
}

// Actor identifies who requested an operation.
type Actor struct {
	ID   int64
	Role pipeline.Role
}
