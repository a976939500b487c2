package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/distro/internal/catalog"
	"github.com/odyssey-erp/distro/internal/pipeline"
)

type recordingNotifier struct {
	batches [][]int64
	err     error
}

func (n *recordingNotifier) NewOrders(_ context.Context, _ BoardKind, ids []int64) error {
	n.batches = append(n.batches, ids)
	return n.err
}

func snapshot(id int64, status pipeline.Status, total string, itemIDs ...int64) OrderSnapshot {
	o := OrderSnapshot{ID: id, Status: status, Total: dec(total)}
	for _, it := range itemIDs {
		o.Items = append(o.Items, OrderItemSnapshot{ID: it, ProductID: it, Quantity: 1})
	}
	return o
}

func loadedBoard(t *testing.T, kind BoardKind, gw *fakeGateway) *Board {
	t.Helper()
	b, err := NewBoard(kind, gw, nil, quietLogger())
	require.NoError(t, err)
	_, err = b.Refresh(context.Background())
	require.NoError(t, err)
	gw.calls = nil
	return b
}

func TestNewBoardUnknownKind(t *testing.T) {
	_, err := NewBoard("kitchen", newFakeGateway(), nil, nil)
	assert.ErrorIs(t, err, ErrUnknownBoard)
}

func TestRefreshReportsNewOrdersAfterPriming(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(1, pipeline.StatusConfirmed, "10")}
	n := &recordingNotifier{err: errors.New("speaker offline")}
	b, err := NewBoard(BoardDeposit, gw, n, quietLogger())
	require.NoError(t, err)

	fresh, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Empty(t, n.batches)

	gw.orders = append(gw.orders, snapshot(2, pipeline.StatusConfirmed, "20"))
	fresh, err = b.Refresh(context.Background())
	require.NoError(t, err, "notifier failures are swallowed")
	assert.Equal(t, []int64{2}, fresh)
	assert.Equal(t, [][]int64{{2}}, n.batches)
	assert.Len(t, b.Orders(), 2)

	assert.Equal(t, []pipeline.Status{pipeline.StatusConfirmed, pipeline.StatusPreparing, pipeline.StatusPrepared}, gw.filters[0].Statuses)
	assert.True(t, gw.filters[0].Last2Weeks)
}

func TestAdminBoardListsLastTwoWeeks(t *testing.T) {
	gw := newFakeGateway()
	loadedBoard(t, BoardAdmin, gw)
	require.Len(t, gw.filters, 1)
	assert.True(t, gw.filters[0].Last2Weeks)
	assert.Empty(t, gw.filters[0].Statuses)
}

func TestDepositActionsSendExpectedStatus(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(1, pipeline.StatusConfirmed, "10")}
	b := loadedBoard(t, BoardDeposit, gw)

	assert.Equal(t, []Action{ActionStartPreparation}, b.Actions(b.Orders()[0]))
	assert.ErrorIs(t, b.MarkPrepared(context.Background(), 1), ErrActionNotAllowed)
	assert.ErrorIs(t, b.Approve(context.Background(), 1), ErrActionNotAllowed)

	require.NoError(t, b.StartPreparation(context.Background(), 1))
	require.NoError(t, b.MarkPrepared(context.Background(), 1))
	assert.Equal(t, []StatusRequest{
		{NewStatus: pipeline.StatusPreparing, ExpectedStatus: pipeline.StatusConfirmed},
		{NewStatus: pipeline.StatusPrepared, ExpectedStatus: pipeline.StatusPreparing},
	}, gw.statuses)
	orders := b.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, pipeline.StatusPrepared, orders[0].Status)
	assert.Empty(t, b.Actions(orders[0]))
}

func TestDepositBoardListsPreparedWithoutActions(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(1, pipeline.StatusPrepared, "10")}
	b := loadedBoard(t, BoardDeposit, gw)

	require.Len(t, b.Orders(), 1)
	assert.Empty(t, b.Actions(b.Orders()[0]))
	assert.ErrorIs(t, b.MarkPrepared(context.Background(), 1), ErrActionNotAllowed)
}

func TestEveryBoardListsLastTwoWeeks(t *testing.T) {
	for _, kind := range []BoardKind{BoardDeposit, BoardControl, BoardLogistics, BoardDriver, BoardAdmin} {
		gw := newFakeGateway()
		loadedBoard(t, kind, gw)
		require.Len(t, gw.filters, 1)
		assert.True(t, gw.filters[0].Last2Weeks, string(kind))
	}
}

func TestConflictIsReturnedWithoutRetry(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(1, pipeline.StatusConfirmed, "10")}
	b := loadedBoard(t, BoardDeposit, gw)
	gw.failStatus = ErrConflict

	gw.orders[0].Status = pipeline.StatusPreparing

	err := b.StartPreparation(context.Background(), 1)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []string{"SetOrderStatus", "GetOrder"}, gw.Calls(), "the order is re-read, the change is not retried")
	assert.Equal(t, pipeline.StatusPreparing, b.Orders()[0].Status)
	assert.Equal(t, []Action{ActionMarkPrepared}, b.Actions(b.Orders()[0]))
}

func TestConflictDropsOrderThatLeftTheBoard(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(5, pipeline.StatusPrepared, "10", 51)}
	b := loadedBoard(t, BoardControl, gw)
	require.NoError(t, b.ToggleItem(5, 51, true))
	gw.failStatus = ErrConflict
	gw.orders[0].Status = pipeline.StatusCancelled

	require.ErrorIs(t, b.Approve(context.Background(), 5), ErrConflict)
	assert.Empty(t, b.Orders())
}

func TestChecklistResetsWhenOrderReturns(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(5, pipeline.StatusPrepared, "10", 51, 52)}
	b := loadedBoard(t, BoardControl, gw)
	ctx := context.Background()
	require.NoError(t, b.ToggleItem(5, 51, true))
	require.NoError(t, b.ToggleItem(5, 52, true))
	require.True(t, b.ChecklistComplete(5))

	rejected := gw.orders
	gw.orders = nil
	_, err := b.Refresh(ctx)
	require.NoError(t, err)

	gw.orders = rejected
	_, err = b.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, b.ChecklistComplete(5))
	assert.Equal(t, []Action{ActionReject}, b.Actions(b.Orders()[0]))
	assert.ErrorIs(t, b.Approve(ctx, 5), ErrChecklistIncomplete)
}

func TestChecklistResetsWhenOrderChangedBetweenRefreshes(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(5, pipeline.StatusPrepared, "10", 51)}
	b := loadedBoard(t, BoardControl, gw)
	require.NoError(t, b.ToggleItem(5, 51, true))

	_, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, b.ChecklistComplete(5), "unchanged orders keep their ticks")

	gw.orders[0].UpdatedAt = reviewNow
	_, err = b.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, b.ChecklistComplete(5))
}

func TestControlChecklistGate(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(5, pipeline.StatusPrepared, "10", 51, 52)}
	b := loadedBoard(t, BoardControl, gw)
	order := b.Orders()[0]

	assert.Equal(t, []Action{ActionReject}, b.Actions(order))
	require.NoError(t, b.ToggleItem(5, 51, true))
	err := b.Approve(context.Background(), 5)
	require.ErrorIs(t, err, ErrChecklistIncomplete)
	assert.Equal(t, "CHECKLIST_INCOMPLETE", Code(err))
	assert.Empty(t, gw.Calls())

	assert.ErrorIs(t, b.ToggleItem(5, 99, true), ErrActionNotAllowed)
	require.NoError(t, b.ToggleItem(5, 52, true))
	assert.Equal(t, []Action{ActionApprove, ActionReject}, b.Actions(order))

	require.NoError(t, b.Approve(context.Background(), 5))
	require.Len(t, gw.statuses, 1)
	assert.Equal(t, pipeline.StatusQualityChecked, gw.statuses[0].NewStatus)
	assert.Equal(t, []pipeline.ChecklistEntry{{ItemID: 51, Checked: true}, {ItemID: 52, Checked: true}}, gw.statuses[0].Checklist)
}

func TestControlRejectSendsBack(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(5, pipeline.StatusPrepared, "10", 51)}
	b := loadedBoard(t, BoardControl, gw)

	require.NoError(t, b.Reject(context.Background(), 5))
	assert.Equal(t, pipeline.StatusPreparing, gw.statuses[0].NewStatus)
	assert.Empty(t, gw.statuses[0].Checklist)
}

func TestUrgent(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	at := func(d time.Duration) OrderSnapshot {
		due := now.Add(d)
		return OrderSnapshot{DeliveryDate: &due}
	}
	assert.True(t, Urgent(at(12*time.Hour), now))
	assert.True(t, Urgent(at(time.Hour), now))
	assert.False(t, Urgent(at(13*time.Hour), now))
	assert.False(t, Urgent(at(0), now))
	assert.False(t, Urgent(at(-time.Hour), now))
	assert.False(t, Urgent(OrderSnapshot{}, now))
}

func TestDriverDeliveryGateAndTallies(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{
		snapshot(1, pipeline.StatusInDelivery, "100"),
		snapshot(2, pipeline.StatusInDelivery, "50"),
		snapshot(3, pipeline.StatusInDelivery, "30"),
		snapshot(4, pipeline.StatusAssigned, "10"),
	}
	b := loadedBoard(t, BoardDriver, gw)
	b.now = func() time.Time { return reviewNow }
	ctx := context.Background()

	err := b.ConfirmDelivery(ctx, 1, DeliveryConfirmation{Method: PaymentCash})
	require.ErrorIs(t, err, ErrPaymentNotConfirmed)
	assert.Equal(t, "PAYMENT_NOT_CONFIRMED", Code(err))
	assert.Empty(t, gw.Calls())

	assert.ErrorIs(t, b.ConfirmDelivery(ctx, 4, DeliveryConfirmation{PaymentReceived: true}), ErrActionNotAllowed)

	lat, lng := -31.41, -64.18
	require.NoError(t, b.ConfirmDelivery(ctx, 1, DeliveryConfirmation{PaymentReceived: true, Method: PaymentCash, Latitude: &lat, Longitude: &lng}))
	require.NoError(t, b.ConfirmDelivery(ctx, 2, DeliveryConfirmation{PaymentReceived: true, Method: PaymentTransfer}))
	require.NoError(t, b.ConfirmDelivery(ctx, 3, DeliveryConfirmation{PaymentReceived: true, Method: PaymentBoth}))

	require.Len(t, gw.delivery, 3)
	first := gw.delivery[0]
	assert.Equal(t, pipeline.StatusDelivered, first.NewStatus)
	assert.Equal(t, pipeline.StatusInDelivery, first.ExpectedStatus)
	assert.True(t, first.PaymentConfirmed)
	require.NotNil(t, first.DeliveredAt)
	assert.Equal(t, reviewNow, *first.DeliveredAt)
	assert.Nil(t, gw.delivery[1].Latitude)

	tally := b.Tally()
	assert.Equal(t, 3, tally.Delivered)
	assert.True(t, tally.Cash.Equal(dec("115")), tally.Cash.String())
	assert.True(t, tally.Transfer.Equal(dec("65")), tally.Transfer.String())
	assert.Len(t, b.Orders(), 1)

	require.NoError(t, b.StartRoute(ctx, 4))
}

func TestDepositBoardCannotDeliverOrCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{snapshot(1, pipeline.StatusConfirmed, "10")}
	b := loadedBoard(t, BoardDeposit, gw)

	assert.ErrorIs(t, b.ConfirmDelivery(context.Background(), 1, DeliveryConfirmation{PaymentReceived: true}), ErrActionNotAllowed)
	assert.ErrorIs(t, b.Cancel(context.Background(), 1), ErrActionNotAllowed)
	assert.ErrorIs(t, b.StartPreparation(context.Background(), 99), ErrNotOnBoard)
}

func TestAdminCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.orders = []OrderSnapshot{
		snapshot(1, pipeline.StatusAssigned, "10"),
		snapshot(2, pipeline.StatusDelivered, "10"),
	}
	b := loadedBoard(t, BoardAdmin, gw)

	assert.ErrorIs(t, b.Cancel(context.Background(), 2), ErrActionNotAllowed)
	require.NoError(t, b.Cancel(context.Background(), 1))
	assert.Equal(t, StatusRequest{NewStatus: pipeline.StatusCancelled, ExpectedStatus: pipeline.StatusAssigned}, gw.statuses[0])
	assert.Equal(t, pipeline.StatusCancelled, b.Orders()[0].Status)
}

func TestLoadCatalog(t *testing.T) {
	gw := newFakeGateway()
	gw.products = []catalog.Product{product(1, "10"), product(2, "20")}
	gw.municipalities = []catalog.Municipality{{ID: 1, Name: "Cordoba"}}

	c, err := LoadCatalog(context.Background(), gw)
	require.NoError(t, err)
	p, ok := c.Product(2)
	require.True(t, ok)
	assert.True(t, p.SalePrice.Equal(dec("20")))
	assert.Len(t, c.Municipalities, 1)

	gw.failProducts = ErrTransport
	_, err = LoadCatalog(context.Background(), gw)
	assert.ErrorIs(t, err, ErrTransport)
}
