// Package console is the operator-side core: the order cart and draft editor,
// the confirmation flow and the role boards of the order pipeline. It reaches
// the backend only through Gateway.
package console

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/catalog"
	"github.com/odyssey-erp/distro/internal/pipeline"
)

// Gateway is the backend as seen by the console.
type Gateway interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	SearchClients(ctx context.Context, query string) ([]catalog.Client, error)
	ListMunicipalities(ctx context.Context) ([]catalog.Municipality, error)

	CreateOrder(ctx context.Context, req SaveOrderRequest) (int64, error)
	UpdateOrder(ctx context.Context, id int64, req SaveOrderRequest) error
	GetOrder(ctx context.Context, id int64) (*OrderSnapshot, error)
	SearchDraftOrders(ctx context.Context, q DraftQuery) ([]OrderSnapshot, error)

	ConfirmOrder(ctx context.Context, id int64, req ConfirmRequest) error
	RecordPayment(ctx context.Context, id int64, req PaymentRequest) error
	SetOrderStatus(ctx context.Context, id int64, req StatusRequest) error
	ConfirmDelivery(ctx context.Context, id int64, req DeliveryRequest) error
	ListOrders(ctx context.Context, filter ListFilter) ([]OrderSnapshot, error)
}

// ItemPayload is one cart line as sent to the backend. Prices never travel.
type ItemPayload struct {
	ProductID       int64           `json:"productId"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// SaveOrderRequest creates or replaces a draft.
type SaveOrderRequest struct {
	ClientID int64         `json:"clientId"`
	Notes    string        `json:"notes"`
	Items    []ItemPayload `json:"items"`
}

type ConfirmRequest struct {
	DeliveryAddress *string  `json:"delivery_address,omitempty"`
	DeliveryDate    string   `json:"delivery_date"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	// PaymentBoth is only a driver tally bucket, never sent as a payment.
	PaymentBoth PaymentMethod = "BOTH"
)

// PaymentRequest records one partial payment. IdempotencyKey travels as a
// header.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Reference      *string         `json:"reference,omitempty"`
	IdempotencyKey string          `json:"-"`
}

type StatusRequest struct {
	NewStatus      pipeline.Status           `json:"new_status"`
	ExpectedStatus pipeline.Status           `json:"expected_status,omitempty"`
	Checklist      []pipeline.ChecklistEntry `json:"checklist,omitempty"`
}

type DeliveryRequest struct {
	NewStatus        pipeline.Status `json:"new_status"`
	ExpectedStatus   pipeline.Status `json:"expected_status,omitempty"`
	Latitude         *float64        `json:"latitude,omitempty"`
	Longitude        *float64        `json:"longitude,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	PaymentConfirmed bool            `json:"payment_confirmed"`
}

type ListFilter struct {
	Last2Weeks bool
	Statuses   []pipeline.Status
}

// DraftQuery searches drafts by client name or by phone; one of them is set.
type DraftQuery struct {
	Name  string
	Phone string
}

type OrderItemSnapshot struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productId"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// OrderSnapshot is an order as read from the backend.
type OrderSnapshot struct {
	ID                   int64               `json:"id"`
	ClientID             int64               `json:"client_id"`
	ClientName           string              `json:"client_name"`
	ClientPhone          string              `json:"client_phone"`
	MunicipalitySnapshot *string             `json:"municipality_snapshot,omitempty"`
	Status               pipeline.Status     `json:"status"`
	Notes                string              `json:"notes"`
	DeliveryAddress      *string             `json:"delivery_address,omitempty"`
	DeliveryDate         *time.Time          `json:"delivery_date,omitempty"`
	Latitude             *float64            `json:"latitude,omitempty"`
	Longitude            *float64            `json:"longitude,omitempty"`
	PaymentConfirmed     bool                `json:"payment_confirmed"`
	Items                []OrderItemSnapshot `json:"items"`
	Total                decimal.Decimal     `json:"total"`
	Paid                 decimal.Decimal     `json:"paid"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// ItemIDs lists persisted line ids.
func (o OrderSnapshot) ItemIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ID)
	}
	return ids
}
