package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pipeline"
)

// SaveRequest creates or replaces the contents of a quotation.
type SaveRequest struct {
	ClientID int64       `json:"clientId"`
	Notes    string      `json:"notes" validate:"max=2000"`
	Items    []ItemInput `json:"items" validate:"dive"`
}

// ItemInput is one cart line as submitted by the console.
type ItemInput struct {
	ProductID       int64           `json:"productId" validate:"required,gt=0"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// ConfirmRequest promotes a quotation to CONFIRMED.
type ConfirmRequest struct {
	DeliveryAddress *string  `json:"delivery_address,omitempty" validate:"omitempty,max=500"`
	DeliveryDate    string   `json:"delivery_date"`
	Latitude        *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// PaymentRequest records one partial payment.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method" validate:"required,oneof=CASH TRANSFER"`
	Reference *string         `json:"reference,omitempty" validate:"omitempty,max=120"`
}

// SetStatusRequest moves an order along the pipeline.
type SetStatusRequest struct {
	NewStatus      pipeline.Status           `json:"new_status" validate:"required"`
	ExpectedStatus *pipeline.Status          `json:"expected_status,omitempty"`
	Checklist      []pipeline.ChecklistEntry `json:"checklist,omitempty"`
}

// DeliveryRequest closes an order as DELIVERED.
type DeliveryRequest struct {
	NewStatus        pipeline.Status  `json:"new_status,omitempty"`
	ExpectedStatus   *pipeline.Status `json:"expected_status,omitempty"`
	Latitude         *float64         `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64         `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
	PaymentConfirmed bool             `json:"payment_confirmed"`
}

// ListRequest filters order listings.
type ListRequest struct {
	Statuses   []pipeline.Status
	Last2Weeks bool
	Since      *time.Time
	Limit      int
}

// DraftSearchRequest looks up quotations by client name or phone.
type DraftSearchRequest struct {
	Name  string
	Phone string
}
