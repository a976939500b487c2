package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/shared"
)

// mockRepository keeps orders in memory. WithTx restores the previous state
// when the callback fails.
type mockRepository struct {
	mu       sync.Mutex
	orders   map[int64]*Order
	payments map[int64][]Payment
	history  []StatusChange
	clients  map[int64]ClientSnapshot
	products map[int64]ProductSnapshot
	nextID   int64
	nextItem int64

	getErr  error
	txErr   error
	listReq *ListRequest
	drafts  *DraftSearchRequest
}

func newMockRepository() *mockRepository {
	muni := "Centro"
	return &mockRepository{
		orders:   make(map[int64]*Order),
		payments: make(map[int64][]Payment),
		clients: map[int64]ClientSnapshot{
			7: {ID: 7, Name: "Kiosco Centro", Phone: "3511234567", Municipality: &muni},
		},
		products: map[int64]ProductSnapshot{
			1: {ID: 1, Description: "Agua 2L", SalePrice: decimal.NewFromInt(100)},
			2: {ID: 2, Description: "Soda 1L", SalePrice: decimal.NewFromInt(50)},
		},
	}
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.view(o), nil
}

func (m *mockRepository) view(o *Order) *Order {
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	cp.ComputeTotals()
	cp.Paid = decimal.Zero
	for _, p := range m.payments[o.ID] {
		cp.Paid = cp.Paid.Add(p.Amount)
	}
	return &cp
}

func (m *mockRepository) List(_ context.Context, req ListRequest) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listReq = &req
	var out []Order
	for _, o := range m.orders {
		if len(req.Statuses) > 0 && !containsStatus(req.Statuses, o.Status) {
			continue
		}
		if req.Since != nil && o.CreatedAt.Before(*req.Since) {
			continue
		}
		out = append(out, *m.view(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepository) SearchDrafts(_ context.Context, req DraftSearchRequest) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts = &req
	var out []Order
	for _, o := range m.orders {
		if o.Status != pipeline.StatusQuotation {
			continue
		}
		if req.Phone != "" && strings.HasPrefix(o.ClientPhone, req.Phone) ||
			req.Name != "" && strings.Contains(strings.ToLower(o.ClientName), strings.ToLower(req.Name)) {
			out = append(out, *m.view(o))
		}
	}
	return out, nil
}

func (m *mockRepository) GetClient(_ context.Context, id int64) (*ClientSnapshot, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (m *mockRepository) GetProducts(_ context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	out := make(map[int64]ProductSnapshot, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make(map[int64]*Order, len(m.orders))
	for id, o := range m.orders {
		cp := *o
		cp.Items = append([]Item(nil), o.Items...)
		orders[id] = &cp
	}
	payments := make(map[int64][]Payment, len(m.payments))
	for id, p := range m.payments {
		payments[id] = append([]Payment(nil), p...)
	}
	history := append([]StatusChange(nil), m.history...)

	if m.txErr != nil {
		return m.txErr
	}
	if err := fn(ctx, &mockTx{m: m}); err != nil {
		m.orders, m.payments, m.history = orders, payments, history
		return err
	}
	return nil
}

// seed stores an order in the given status with the given items.
func (m *mockRepository) seed(status pipeline.Status, items ...Item) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	for i := range items {
		m.nextItem++
		items[i].ID = m.nextItem
		items[i].OrderID = m.nextID
	}
	m.orders[m.nextID] = &Order{
		ID:         m.nextID,
		ClientID:   7,
		ClientName: "Kiosco Centro",
		Status:     status,
		Items:      items,
	}
	return m.nextID
}

type mockTx struct {
	m *mockRepository
}

func (t *mockTx) LockStatus(_ context.Context, id int64) (pipeline.Status, error) {
	o, ok := t.m.orders[id]
	if !ok {
		return "", ErrNotFound
	}
	return o.Status, nil
}

func (t *mockTx) CreateOrder(_ context.Context, o Order) (int64, error) {
	t.m.nextID++
	o.ID = t.m.nextID
	t.m.orders[o.ID] = &o
	return o.ID, nil
}

func (t *mockTx) UpdateOrder(_ context.Context, id int64, updates map[string]interface{}) error {
	o, ok := t.m.orders[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "client_id":
			o.ClientID = v.(int64)
		case "client_name":
			o.ClientName = v.(string)
		case "client_phone":
			o.ClientPhone = v.(string)
		case "notes":
			o.Notes = v.(string)
		case "status":
			o.Status = pipeline.Status(v.(string))
		case "delivery_address":
			s := v.(string)
			o.DeliveryAddress = &s
		case "delivery_date":
			d := v.(time.Time)
			o.DeliveryDate = &d
		case "latitude":
			f := v.(float64)
			o.Latitude = &f
		case "longitude":
			f := v.(float64)
			o.Longitude = &f
		case "payment_confirmed":
			o.PaymentConfirmed = v.(bool)
		case "delivered_at":
			d := v.(time.Time)
			o.DeliveredAt = &d
		case "delivery_latitude":
			f := v.(float64)
			o.DeliveryLatitude = &f
		case "delivery_longitude":
			f := v.(float64)
			o.DeliveryLongitude = &f
		case "municipality_snapshot":
			o.MunicipalitySnapshot = v.(*string)
		default:
			return errors.New("unexpected column " + k)
		}
	}
	return nil
}

func (t *mockTx) UpdateStatus(ctx context.Context, id int64, status pipeline.Status, updates map[string]interface{}) error {
	if updates == nil {
		updates = make(map[string]interface{})
	}
	updates["status"] = string(status)
	return t.UpdateOrder(ctx, id, updates)
}

func (t *mockTx) ReplaceItems(_ context.Context, orderID int64, items []Item) error {
	o, ok := t.m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Items = nil
	for _, it := range items {
		t.m.nextItem++
		it.ID = t.m.nextItem
		it.OrderID = orderID
		o.Items = append(o.Items, it)
	}
	return nil
}

func (t *mockTx) ListItems(_ context.Context, orderID int64) ([]Item, error) {
	o, ok := t.m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Item(nil), o.Items...), nil
}

func (t *mockTx) PaidTotal(_ context.Context, orderID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range t.m.payments[orderID] {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (t *mockTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	p.ID = int64(len(t.m.payments[p.OrderID]) + 1)
	t.m.payments[p.OrderID] = append(t.m.payments[p.OrderID], p)
	return p.ID, nil
}

func (t *mockTx) InsertStatusChange(_ context.Context, c StatusChange) error {
	t.m.history = append(t.m.history, c)
	return nil
}

func containsStatus(list []pipeline.Status, s pipeline.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// COLLABORATOR FAKES
// ============================================================================

type fakeGuard struct {
	keys map[string]bool
}

func (g *fakeGuard) CheckAndInsert(_ context.Context, key, module string) error {
	if g.keys == nil {
		g.keys = make(map[string]bool)
	}
	if g.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[module+":"+key] = true
	return nil
}

func (g *fakeGuard) Delete(_ context.Context, key, module string) error {
	delete(g.keys, module+":"+key)
	return nil
}

type fakeNotifier struct {
	confirmed []int64
	changes   []string
	err       error
}

func (n *fakeNotifier) NotifyConfirmed(_ context.Context, id int64) error {
	n.confirmed = append(n.confirmed, id)
	return n.err
}

func (n *fakeNotifier) NotifyStatusChanged(_ context.Context, _ int64, from, to string) error {
	n.changes = append(n.changes, from+"->"+to)
	return n.err
}

type fakeAudit struct {
	actions []string
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}
