package console

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/odyssey-erp/distro/internal/catalog"
)

const (
	draftSearchMin  = 2
	clientSearchMin = 3
)

// Editor owns the draft being edited and persists it through the gateway.
type Editor struct {
	gateway Gateway
	session *Session
	logger  *slog.Logger
	now     func() time.Time

	draft *Draft
	busy  atomic.Bool
}

// NewEditor constructs an Editor holding an empty quotation. A nil session
// leaves the draft editable; otherwise only sales and admin operators edit,
// judged against whoever is logged in at the time of the edit.
func NewEditor(gateway Gateway, session *Session, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Editor{gateway: gateway, session: session, logger: logger, now: time.Now}
	e.NewOrder()
	return e
}

// Draft exposes the draft for cart operations.
func (e *Editor) Draft() *Draft { return e.draft }

// Dirty reports edits not yet saved.
func (e *Editor) Dirty() bool { return e.draft.Dirty() }

// NewOrder discards the current draft and starts an empty quotation.
func (e *Editor) NewOrder() {
	e.draft = NewDraft(e.now())
	e.draft.mayEdit = e.mayEdit
}

// SelectClient snapshots the client into the draft.
func (e *Editor) SelectClient(client catalog.Client) bool {
	if !e.draft.Editable() {
		return false
	}
	e.draft.Client = &ClientRef{
		ID:           client.ID,
		Name:         client.Name,
		Phone:        client.Phone,
		Municipality: client.MunicipalityName(),
	}
	e.draft.MunicipalitySnapshot = client.MunicipalityName()
	e.draft.dirty = true
	return true
}

func (e *Editor) SetNotes(notes string) bool {
	if !e.draft.Editable() {
		return false
	}
	e.draft.Notes = notes
	e.draft.dirty = true
	return true
}

// SaveOrder creates the order on first save and replaces it afterwards.
// Validation runs before any gateway call. On failure the draft is untouched.
func (e *Editor) SaveOrder(ctx context.Context) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)

	d := e.draft
	if d.Client == nil {
		return ErrClientRequired
	}
	if len(d.Items) == 0 {
		return ErrItemsRequired
	}
	req := d.payload()
	if d.OrderID == nil {
		id, err := e.gateway.CreateOrder(ctx, req)
		if err != nil {
			e.logger.Warn("create order failed", slog.Any("error", err))
			return err
		}
		d.OrderID = &id
		e.logger.Info("order created", slog.Int64("order_id", id), slog.Int("items", len(req.Items)))
	} else {
		if err := e.gateway.UpdateOrder(ctx, *d.OrderID, req); err != nil {
			e.logger.Warn("update order failed", slog.Int64("order_id", *d.OrderID), slog.Any("error", err))
			return err
		}
		e.logger.Info("order updated", slog.Int64("order_id", *d.OrderID), slog.Int("items", len(req.Items)))
	}
	d.dirty = false
	return nil
}

// LoadDraftOrder replaces the draft with a persisted order.
func (e *Editor) LoadDraftOrder(order OrderSnapshot) {
	id := order.ID
	d := &Draft{
		OrderID:      &id,
		Client:       &ClientRef{ID: order.ClientID, Name: order.ClientName, Phone: order.ClientPhone},
		Items:        make([]CartItem, 0, len(order.Items)),
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		DeliveryDate: order.DeliveryDate,
		Notes:        order.Notes,
	}
	if order.MunicipalitySnapshot != nil {
		d.MunicipalitySnapshot = *order.MunicipalitySnapshot
		d.Client.Municipality = *order.MunicipalitySnapshot
	}
	for _, it := range order.Items {
		lineID := it.ID
		d.Items = append(d.Items, CartItem{
			ID:              &lineID,
			ProductID:       it.ProductID,
			Description:     it.Description,
			Quantity:        it.Quantity,
			SalePrice:       it.SalePrice,
			DiscountPercent: it.DiscountPercent,
		})
	}
	d.mayEdit = e.mayEdit
	e.draft = d
}

// SearchDrafts finds saved quotations. Queries shorter than two characters
// return nothing without a backend call; digit-only queries match phones.
func (e *Editor) SearchDrafts(ctx context.Context, query string) ([]OrderSnapshot, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < draftSearchMin {
		return []OrderSnapshot{}, nil
	}
	q := DraftQuery{Name: query}
	if isDigits(query) {
		q = DraftQuery{Phone: query}
	}
	return e.gateway.SearchDraftOrders(ctx, q)
}

// SearchClients looks up clients once the query has three characters.
func (e *Editor) SearchClients(ctx context.Context, query string) ([]catalog.Client, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < clientSearchMin {
		return []catalog.Client{}, nil
	}
	return e.gateway.SearchClients(ctx, query)
}

func (e *Editor) mayEdit() bool {
	return e.session == nil || e.session.canSell()
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
