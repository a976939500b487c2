package console

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/distro/internal/pipeline"
)

// urgentWindow flags logistics orders due within the next twelve hours.
const urgentWindow = 12 * time.Hour

// BoardKind names a role dashboard.
type BoardKind string

const (
	BoardDeposit   BoardKind = "deposit"
	BoardControl   BoardKind = "control"
	BoardLogistics BoardKind = "logistics"
	BoardDriver    BoardKind = "driver"
	BoardAdmin     BoardKind = "admin"
)

// Action is an operator command on a board.
type Action string

const (
	ActionStartPreparation Action = "start_preparation"
	ActionMarkPrepared     Action = "mark_prepared"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionAssign           Action = "assign"
	ActionStartRoute       Action = "start_route"
	ActionCancel           Action = "cancel"
)

type transition struct {
	from pipeline.Status
	to   pipeline.Status
}

// actionTransitions maps fixed-edge actions; ActionCancel applies to any
// non-terminal status.
var actionTransitions = map[Action]transition{
	ActionStartPreparation: {pipeline.StatusConfirmed, pipeline.StatusPreparing},
	ActionMarkPrepared:     {pipeline.StatusPreparing, pipeline.StatusPrepared},
	ActionApprove:          {pipeline.StatusPrepared, pipeline.StatusQualityChecked},
	ActionReject:           {pipeline.StatusPrepared, pipeline.StatusPreparing},
	ActionAssign:           {pipeline.StatusQualityChecked, pipeline.StatusAssigned},
	ActionStartRoute:       {pipeline.StatusAssigned, pipeline.StatusInDelivery},
}

// boardDef describes one dashboard. Every board lists the last two weeks;
// an empty status list shows every status.
type boardDef struct {
	statuses []pipeline.Status
	actions  []Action
	delivers bool
}

var boards = map[BoardKind]boardDef{
	BoardDeposit: {
		statuses: []pipeline.Status{pipeline.StatusConfirmed, pipeline.StatusPreparing, pipeline.StatusPrepared},
		actions:  []Action{ActionStartPreparation, ActionMarkPrepared},
	},
	BoardControl: {
		statuses: []pipeline.Status{pipeline.StatusPrepared},
		actions:  []Action{ActionApprove, ActionReject},
	},
	BoardLogistics: {
		statuses: []pipeline.Status{pipeline.StatusQualityChecked},
		actions:  []Action{ActionAssign},
	},
	BoardDriver: {
		statuses: []pipeline.Status{pipeline.StatusAssigned, pipeline.StatusInDelivery},
		actions:  []Action{ActionStartRoute},
		delivers: true,
	},
	BoardAdmin: {
		actions: []Action{
			ActionStartPreparation, ActionMarkPrepared, ActionApprove, ActionReject,
			ActionAssign, ActionStartRoute, ActionCancel,
		},
		delivers: true,
	},
}

// Notifier announces orders that appeared on a board since the last refresh.
type Notifier interface {
	NewOrders(ctx context.Context, kind BoardKind, ids []int64) error
}

// Tally accumulates what a driver collected on delivered orders.
type Tally struct {
	Cash      decimal.Decimal
	Transfer  decimal.Decimal
	Delivered int
}

// DeliveryConfirmation is what the driver reports at the door.
type DeliveryConfirmation struct {
	PaymentReceived bool
	Method          PaymentMethod
	Latitude        *float64
	Longitude       *float64
}

// Board is one role dashboard over the order pipeline.
type Board struct {
	kind     BoardKind
	def      boardDef
	gateway  Gateway
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time

	mu         sync.Mutex
	orders     []OrderSnapshot
	seen       map[int64]struct{}
	primed     bool
	checklists map[int64]map[int64]bool
	tally      Tally
	busy       atomic.Bool
}

// NewBoard constructs the dashboard for kind. The notifier is optional.
func NewBoard(kind BoardKind, gateway Gateway, notifier Notifier, logger *slog.Logger) (*Board, error) {
	def, ok := boards[kind]
	if !ok {
		return nil, ErrUnknownBoard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		kind:       kind,
		def:        def,
		gateway:    gateway,
		logger:     logger.With(slog.String("board", string(kind))),
		notifier:   notifier,
		now:        time.Now,
		seen:       make(map[int64]struct{}),
		checklists: make(map[int64]map[int64]bool),
		tally:      Tally{Cash: decimal.Zero, Transfer: decimal.Zero},
	}, nil
}

func (b *Board) Kind() BoardKind { return b.kind }

// Orders returns a copy of the orders currently shown.
func (b *Board) Orders() []OrderSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.orders)
}

// Refresh reloads the board and returns ids not seen before. The first
// refresh only primes the seen set. Checklist ticks survive only while the
// order is listed unchanged.
func (b *Board) Refresh(ctx context.Context) ([]int64, error) {
	orders, err := b.gateway.ListOrders(ctx, ListFilter{Last2Weeks: true, Statuses: b.def.statuses})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	listed := make(map[int64]OrderSnapshot, len(orders))
	for _, o := range orders {
		listed[o.ID] = o
	}
	for _, prev := range b.orders {
		if next, ok := listed[prev.ID]; ok && (next.Status != prev.Status || !next.UpdatedAt.Equal(prev.UpdatedAt)) {
			delete(b.checklists, prev.ID)
		}
	}
	for id := range b.checklists {
		if _, ok := listed[id]; !ok {
			delete(b.checklists, id)
		}
	}
	var fresh []int64
	for _, o := range orders {
		if _, ok := b.seen[o.ID]; !ok {
			b.seen[o.ID] = struct{}{}
			if b.primed {
				fresh = append(fresh, o.ID)
			}
		}
	}
	b.primed = true
	b.orders = orders
	b.mu.Unlock()

	if len(fresh) > 0 && b.notifier != nil {
		if err := b.notifier.NewOrders(ctx, b.kind, fresh); err != nil {
			b.logger.Warn("new order notification failed", slog.Any("error", err))
		}
	}
	return fresh, nil
}

// Actions lists the commands available for an order on this board.
func (b *Board) Actions(order OrderSnapshot) []Action {
	var out []Action
	for _, a := range b.def.actions {
		if a == ActionCancel {
			if !order.Status.IsTerminal() {
				out = append(out, a)
			}
			continue
		}
		if actionTransitions[a].from != order.Status {
			continue
		}
		if a == ActionApprove && !b.ChecklistComplete(order.ID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Perform runs an action against an order on the board, sending the status
// the operator saw as the expected status.
func (b *Board) Perform(ctx context.Context, orderID int64, action Action) error {
	if !b.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer b.busy.Store(false)

	order, ok := b.find(orderID)
	if !ok {
		return ErrNotOnBoard
	}
	if !slices.Contains(b.def.actions, action) {
		return ErrActionNotAllowed
	}
	target := pipeline.StatusCancelled
	if action != ActionCancel {
		t := actionTransitions[action]
		if t.from != order.Status {
			return ErrActionNotAllowed
		}
		target = t.to
	} else if order.Status.IsTerminal() {
		return ErrActionNotAllowed
	}

	req := StatusRequest{NewStatus: target, ExpectedStatus: order.Status}
	if action == ActionApprove {
		if !b.ChecklistComplete(orderID) {
			return ErrChecklistIncomplete
		}
		req.Checklist = b.Checklist(orderID)
	}
	if err := b.gateway.SetOrderStatus(ctx, orderID, req); err != nil {
		b.logger.Warn("status change failed",
			slog.Int64("order_id", orderID),
			slog.String("action", string(action)),
			slog.Any("error", err))
		if errors.Is(err, ErrConflict) {
			b.reload(ctx, orderID)
		}
		return err
	}
	b.logger.Info("status changed",
		slog.Int64("order_id", orderID),
		slog.String("from", string(order.Status)),
		slog.String("to", string(target)))
	b.apply(orderID, target)
	return nil
}

func (b *Board) StartPreparation(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionStartPreparation)
}

func (b *Board) MarkPrepared(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionMarkPrepared)
}

// Approve passes quality control; every line must be checked first.
func (b *Board) Approve(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionApprove)
}

// Reject sends a prepared order back to preparation.
func (b *Board) Reject(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionReject)
}

func (b *Board) Assign(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionAssign)
}

func (b *Board) StartRoute(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionStartRoute)
}

func (b *Board) Cancel(ctx context.Context, id int64) error {
	return b.Perform(ctx, id, ActionCancel)
}

// ToggleItem ticks or unticks one line of the control checklist.
func (b *Board) ToggleItem(orderID, itemID int64, checked bool) error {
	order, ok := b.find(orderID)
	if !ok {
		return ErrNotOnBoard
	}
	if !slices.Contains(order.ItemIDs(), itemID) {
		return ErrActionNotAllowed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	marks, ok := b.checklists[orderID]
	if !ok {
		marks = make(map[int64]bool)
		b.checklists[orderID] = marks
	}
	marks[itemID] = checked
	return nil
}

// Checklist returns one entry per order line, in line order.
func (b *Board) Checklist(orderID int64) []pipeline.ChecklistEntry {
	order, ok := b.find(orderID)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	marks := b.checklists[orderID]
	entries := make([]pipeline.ChecklistEntry, 0, len(order.Items))
	for _, it := range order.Items {
		entries = append(entries, pipeline.ChecklistEntry{ItemID: it.ID, Checked: marks[it.ID]})
	}
	return entries
}

func (b *Board) ChecklistComplete(orderID int64) bool {
	order, ok := b.find(orderID)
	if !ok {
		return false
	}
	return pipeline.ChecklistComplete(order.ItemIDs(), b.Checklist(orderID))
}

// Urgent reports whether the order is due within the next twelve hours.
func Urgent(order OrderSnapshot, now time.Time) bool {
	if order.DeliveryDate == nil {
		return false
	}
	left := order.DeliveryDate.Sub(now)
	return left > 0 && left <= urgentWindow
}

// UrgentOrders filters the board down to orders due soon.
func (b *Board) UrgentOrders(now time.Time) []OrderSnapshot {
	var out []OrderSnapshot
	for _, o := range b.Orders() {
		if Urgent(o, now) {
			out = append(out, o)
		}
	}
	return out
}

// ConfirmDelivery closes an order in delivery. Without a confirmed payment
// nothing is sent to the backend.
func (b *Board) ConfirmDelivery(ctx context.Context, orderID int64, dc DeliveryConfirmation) error {
	if !b.def.delivers {
		return ErrActionNotAllowed
	}
	if !dc.PaymentReceived {
		return ErrPaymentNotConfirmed
	}
	if !b.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer b.busy.Store(false)

	order, ok := b.find(orderID)
	if !ok {
		return ErrNotOnBoard
	}
	if order.Status != pipeline.StatusInDelivery {
		return ErrActionNotAllowed
	}
	at := b.now().UTC()
	req := DeliveryRequest{
		NewStatus:        pipeline.StatusDelivered,
		ExpectedStatus:   order.Status,
		DeliveredAt:      &at,
		PaymentConfirmed: true,
	}
	if dc.Latitude != nil && dc.Longitude != nil {
		lat, lng := *dc.Latitude, *dc.Longitude
		req.Latitude = &lat
		req.Longitude = &lng
	}
	if err := b.gateway.ConfirmDelivery(ctx, orderID, req); err != nil {
		b.logger.Warn("delivery confirmation failed", slog.Int64("order_id", orderID), slog.Any("error", err))
		if errors.Is(err, ErrConflict) {
			b.reload(ctx, orderID)
		}
		return err
	}
	b.logger.Info("order delivered", slog.Int64("order_id", orderID), slog.String("method", string(dc.Method)))

	b.mu.Lock()
	b.tally.Delivered++
	switch dc.Method {
	case PaymentCash:
		b.tally.Cash = b.tally.Cash.Add(order.Total)
	case PaymentTransfer:
		b.tally.Transfer = b.tally.Transfer.Add(order.Total)
	case PaymentBoth:
		half := order.Total.Div(decimal.NewFromInt(2))
		b.tally.Cash = b.tally.Cash.Add(half)
		b.tally.Transfer = b.tally.Transfer.Add(order.Total.Sub(half))
	}
	b.mu.Unlock()
	b.apply(orderID, pipeline.StatusDelivered)
	return nil
}

// Tally returns the driver's collections since the board was created.
func (b *Board) Tally() Tally {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tally
}

func (b *Board) find(id int64) (OrderSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.ID == id {
			return o, true
		}
	}
	return OrderSnapshot{}, false
}

// reload replaces the local copy of an order with the backend's current one
// after a conflict. The order is dropped when it no longer belongs here.
func (b *Board) reload(ctx context.Context, id int64) {
	current, err := b.gateway.GetOrder(ctx, id)
	if err != nil {
		b.logger.Warn("order reload failed", slog.Int64("order_id", id), slog.Any("error", err))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.checklists, id)
	for i := range b.orders {
		if b.orders[i].ID != id {
			continue
		}
		if len(b.def.statuses) > 0 && !slices.Contains(b.def.statuses, current.Status) {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
		} else {
			b.orders[i] = *current
		}
		return
	}
}

// apply updates the local copy after a successful change and drops orders
// that left the board's status filter.
func (b *Board) apply(id int64, status pipeline.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID != id {
			continue
		}
		b.orders[i].Status = status
		if len(b.def.statuses) > 0 && !slices.Contains(b.def.statuses, status) {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			delete(b.checklists, id)
		}
		return
	}
}
