package console

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/catalog"
)

type fakeGateway struct {
	mu sync.Mutex

	products       []catalog.Product
	municipalities []catalog.Municipality
	clients        []catalog.Client
	orders         []OrderSnapshot

	nextID   int64
	calls    []string
	created  []SaveOrderRequest
	updated  map[int64]SaveOrderRequest
	confirms map[int64]ConfirmRequest
	payments []PaymentRequest
	statuses []StatusRequest
	delivery []DeliveryRequest
	drafts   []DraftQuery
	filters  []ListFilter

	failCreate   error
	failUpdate   error
	failConfirm  error
	failPayment  map[PaymentMethod]error
	failStatus   error
	failDelivery error
	failList     error
	failProducts error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:      100,
		updated:     make(map[int64]SaveOrderRequest),
		confirms:    make(map[int64]ConfirmRequest),
		failPayment: make(map[PaymentMethod]error),
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) ListProducts(context.Context) ([]catalog.Product, error) {
	f.record("ListProducts")
	return f.products, f.failProducts
}

func (f *fakeGateway) SearchClients(_ context.Context, query string) ([]catalog.Client, error) {
	f.record("SearchClients")
	return f.clients, nil
}

func (f *fakeGateway) ListMunicipalities(context.Context) ([]catalog.Municipality, error) {
	f.record("ListMunicipalities")
	return f.municipalities, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, req SaveOrderRequest) (int64, error) {
	f.record("CreateOrder")
	if f.failCreate != nil {
		return 0, f.failCreate
	}
	f.nextID++
	f.created = append(f.created, req)
	return f.nextID, nil
}

func (f *fakeGateway) UpdateOrder(_ context.Context, id int64, req SaveOrderRequest) error {
	f.record("UpdateOrder")
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.updated[id] = req
	return nil
}

func (f *fakeGateway) GetOrder(_ context.Context, id int64) (*OrderSnapshot, error) {
	f.record("GetOrder")
	for _, o := range f.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, ErrTransport
}

func (f *fakeGateway) SearchDraftOrders(_ context.Context, q DraftQuery) ([]OrderSnapshot, error) {
	f.record("SearchDraftOrders")
	f.drafts = append(f.drafts, q)
	return f.orders, nil
}

func (f *fakeGateway) ConfirmOrder(_ context.Context, id int64, req ConfirmRequest) error {
	f.record("ConfirmOrder")
	if f.failConfirm != nil {
		return f.failConfirm
	}
	f.confirms[id] = req
	return nil
}

func (f *fakeGateway) RecordPayment(_ context.Context, id int64, req PaymentRequest) error {
	f.record("RecordPayment:" + string(req.Method))
	if err := f.failPayment[req.Method]; err != nil {
		return err
	}
	f.payments = append(f.payments, req)
	return nil
}

func (f *fakeGateway) SetOrderStatus(_ context.Context, id int64, req StatusRequest) error {
	f.record("SetOrderStatus")
	if f.failStatus != nil {
		return f.failStatus
	}
	f.statuses = append(f.statuses, req)
	return nil
}

func (f *fakeGateway) ConfirmDelivery(_ context.Context, id int64, req DeliveryRequest) error {
	f.record("ConfirmDelivery")
	if f.failDelivery != nil {
		return f.failDelivery
	}
	f.delivery = append(f.delivery, req)
	return nil
}

func (f *fakeGateway) ListOrders(_ context.Context, filter ListFilter) ([]OrderSnapshot, error) {
	f.record("ListOrders")
	f.filters = append(f.filters, filter)
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]OrderSnapshot(nil), f.orders...), nil
}

func product(id int64, price string) catalog.Product {
	return catalog.Product{ID: id, Description: "product", SalePrice: decimal.RequireFromString(price)}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }
