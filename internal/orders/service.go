package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/platform/db"
	"github.com/odyssey-erp/distro/internal/shared"
)

const (
	paymentModule    = "orders.payment"
	draftSearchMin   = 2
	listWindow       = 14 * 24 * time.Hour
	defaultListLimit = 500
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard deduplicates retried write requests.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Notifier is told about committed pipeline changes. Failures never undo the change.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, orderID int64) error
	NotifyStatusChanged(ctx context.Context, orderID int64, from, to string) error
}

// TransitionObserver counts committed transitions.
type TransitionObserver interface {
	ObserveTransition(from, to string)
}

// Service provides business logic for orders.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	audit    AuditRecorder
	idem     IdempotencyGuard
	notifier Notifier
	metrics  TransitionObserver
	now      func() time.Time
}

// NewService creates a new service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// SetAuditor wires the audit trail.
func (s *Service) SetAuditor(a AuditRecorder) { s.audit = a }

// SetIdempotency wires payment deduplication.
func (s *Service) SetIdempotency(g IdempotencyGuard) { s.idem = g }

// SetNotifier wires pipeline notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics wires transition counters.
func (s *Service) SetMetrics(m TransitionObserver) { s.metrics = m }

// Get returns an order with items and totals.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns orders filtered by status and creation window.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Order, error) {
	if req.Last2Weeks && req.Since == nil {
		since := s.now().Add(-listWindow)
		req.Since = &since
	}
	for _, st := range req.Statuses {
		if !st.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, st)
		}
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	return s.repo.List(ctx, req)
}

// SearchDrafts looks up quotations. A query made only of digits is matched
// against the client phone, anything else against the client name.
func (s *Service) SearchDrafts(ctx context.Context, req DraftSearchRequest) ([]Order, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" && req.Name == "" {
		return nil, ErrSearchCriteria
	}
	if req.Phone == "" && isDigits(req.Name) {
		req.Phone, req.Name = req.Name, ""
	}
	if len([]rune(req.Phone)) < draftSearchMin && len([]rune(req.Name)) < draftSearchMin {
		return []Order{}, nil
	}
	return s.repo.SearchDrafts(ctx, req)
}

// Create stores a new quotation.
func (s *Service) Create(ctx context.Context, req SaveRequest, actor Actor) (*Order, error) {
	if err := ValidateSaveRequest(req); err != nil {
		return nil, err
	}
	client, items, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.CreateOrder(ctx, Order{
			ClientID:             client.ID,
			ClientName:           client.Name,
			ClientPhone:          client.Phone,
			MunicipalitySnapshot: client.Municipality,
			Status:               pipeline.StatusQuotation,
			Notes:                strings.TrimSpace(req.Notes),
			CreatedBy:            actor.ID,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "order.create", id, map[string]any{"items": len(items)})
	return s.repo.GetByID(ctx, id)
}

// Update replaces client, notes and items of a quotation.
func (s *Service) Update(ctx context.Context, id int64, req SaveRequest, actor Actor) (*Order, error) {
	if err := ValidateSaveRequest(req); err != nil {
		return nil, err
	}
	client, items, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		status, err := tx.LockStatus(ctx, id)
		if err != nil {
			return err
		}
		if !status.CanEdit() {
			return fmt.Errorf("%w: status %s", ErrCannotEdit, status)
		}
		err = tx.UpdateOrder(ctx, id, map[string]interface{}{
			"client_id":             client.ID,
			"client_name":           client.Name,
			"client_phone":          client.Phone,
			"municipality_snapshot": client.Municipality,
			"notes":                 strings.TrimSpace(req.Notes),
		})
		if err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "order.update", id, map[string]any{"items": len(items)})
	return s.repo.GetByID(ctx, id)
}

// resolve snapshots the client and the current product prices.
func (s *Service) resolve(ctx context.Context, req SaveRequest) (*ClientSnapshot, []Item, error) {
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrClientNotFound
		}
		return nil, nil, err
	}
	inputs := normalizeItems(req.Items)
	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		p, ok := products[in.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", ErrProductNotFound, in.ProductID)
		}
		items = append(items, Item{
			ProductID:       p.ID,
			Description:     p.Description,
			Quantity:        in.Quantity,
			SalePrice:       p.SalePrice,
			DiscountPercent: in.DiscountPercent,
			LineOrder:       i,
		})
	}
	return client, items, nil
}

// Confirm promotes a quotation to CONFIRMED with its delivery details.
func (s *Service) Confirm(ctx context.Context, id int64, req ConfirmRequest, actor Actor) error {
	date, err := ValidateConfirmRequest(req, s.now())
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		status, err := tx.LockStatus(ctx, id)
		if err != nil {
			return err
		}
		if status != pipeline.StatusQuotation {
			return fmt.Errorf("%w: status %s", ErrCannotConfirm, status)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrItemsRequired
		}
		updates := map[string]interface{}{"delivery_date": date}
		if req.DeliveryAddress != nil {
			updates["delivery_address"] = strings.TrimSpace(*req.DeliveryAddress)
		}
		if req.Latitude != nil && req.Longitude != nil {
			updates["latitude"] = *req.Latitude
			updates["longitude"] = *req.Longitude
		}
		if err := tx.UpdateStatus(ctx, id, pipeline.StatusConfirmed, updates); err != nil {
			return err
		}
		return tx.InsertStatusChange(ctx, StatusChange{
			OrderID:   id,
			From:      status,
			To:        pipeline.StatusConfirmed,
			ActorID:   actor.ID,
			ChangedAt: s.now(),
		})
	})
	if err != nil {
		return err
	}
	s.afterTransition(ctx, actor, id, pipeline.StatusQuotation, pipeline.StatusConfirmed)
	return nil
}

// RecordPayment stores a partial payment. The running sum may never exceed
// the order total. A repeated idempotency key is rejected.
func (s *Service) RecordPayment(ctx context.Context, id int64, req PaymentRequest, idemKey string, actor Actor) (*Payment, error) {
	if err := ValidatePaymentRequest(req); err != nil {
		return nil, err
	}
	idemKey = strings.TrimSpace(idemKey)
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, paymentModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicatePayment
			}
			return nil, fmt.Errorf("idempotency: %w", err)
		}
	}

	payment := Payment{
		OrderID:   id,
		Amount:    req.Amount,
		Method:    req.Method,
		CreatedBy: actor.ID,
		CreatedAt: s.now(),
	}
	if req.Reference != nil && strings.TrimSpace(*req.Reference) != "" {
		ref := strings.TrimSpace(*req.Reference)
		payment.Reference = &ref
	}

	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		status, err := tx.LockStatus(ctx, id)
		if err != nil {
			return err
		}
		if status == pipeline.StatusQuotation || status == pipeline.StatusCancelled {
			return fmt.Errorf("%w: status %s", ErrPaymentNotAllowed, status)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		paid, err := tx.PaidTotal(ctx, id)
		if err != nil {
			return err
		}
		if paid.Add(req.Amount).GreaterThan(sumItems(items)) {
			return ErrPaymentExceedsTotal
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		return err
	})
	if err != nil {
		if idemKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, idemKey, paymentModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr), slog.Int64("order_id", id))
			}
		}
		return nil, err
	}
	s.record(ctx, actor, "order.payment", id, map[string]any{
		"amount": payment.Amount.String(),
		"method": string(payment.Method),
	})
	return &payment, nil
}

// SetStatus applies a pipeline transition other than confirmation and delivery.
func (s *Service) SetStatus(ctx context.Context, id int64, req SetStatusRequest, actor Actor) error {
	target := req.NewStatus
	if !target.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, target)
	}
	switch target {
	case pipeline.StatusConfirmed:
		return ErrUseConfirm
	case pipeline.StatusDelivered:
		return ErrUseDelivery
	}

	var from pipeline.Status
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		from, err = s.checkTransition(ctx, tx, id, req.ExpectedStatus, target, actor)
		if err != nil {
			return err
		}
		if target == pipeline.StatusQualityChecked {
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			if !pipeline.ChecklistComplete(ids, req.Checklist) {
				return ErrChecklistIncomplete
			}
		}
		if err := tx.UpdateStatus(ctx, id, target, nil); err != nil {
			return err
		}
		return tx.InsertStatusChange(ctx, StatusChange{
			OrderID:   id,
			From:      from,
			To:        target,
			ActorID:   actor.ID,
			ChangedAt: s.now(),
		})
	})
	if err != nil {
		return err
	}
	s.afterTransition(ctx, actor, id, from, target)
	return nil
}

// ConfirmDelivery closes an in-delivery order. The driver must acknowledge
// the payment receipt.
func (s *Service) ConfirmDelivery(ctx context.Context, id int64, req DeliveryRequest, actor Actor) error {
	if req.NewStatus != "" && req.NewStatus != pipeline.StatusDelivered {
		return fmt.Errorf("%w: delivery cannot set %s", ErrInvalidTransition, req.NewStatus)
	}
	if !req.PaymentConfirmed {
		return ErrPaymentNotConfirmed
	}
	deliveredAt := s.now()
	if req.DeliveredAt != nil && !req.DeliveredAt.IsZero() {
		deliveredAt = *req.DeliveredAt
	}

	var from pipeline.Status
	err := s.withTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		from, err = s.checkTransition(ctx, tx, id, req.ExpectedStatus, pipeline.StatusDelivered, actor)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"payment_confirmed": true,
			"delivered_at":      deliveredAt,
		}
		if req.Latitude != nil && req.Longitude != nil {
			updates["delivery_latitude"] = *req.Latitude
			updates["delivery_longitude"] = *req.Longitude
		}
		if err := tx.UpdateStatus(ctx, id, pipeline.StatusDelivered, updates); err != nil {
			return err
		}
		return tx.InsertStatusChange(ctx, StatusChange{
			OrderID:   id,
			From:      from,
			To:        pipeline.StatusDelivered,
			ActorID:   actor.ID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			ChangedAt: deliveredAt,
		})
	})
	if err != nil {
		return err
	}
	s.afterTransition(ctx, actor, id, from, pipeline.StatusDelivered)
	return nil
}

// withTx runs fn in a repository transaction. A serialization failure means
// another operator moved the order first, so it surfaces as a stale status.
func (s *Service) withTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrStaleStatus, err)
	}
	return err
}

// checkTransition locks the order and verifies freshness, the edge and the role.
func (s *Service) checkTransition(ctx context.Context, tx TxRepository, id int64, expected *pipeline.Status, target pipeline.Status, actor Actor) (pipeline.Status, error) {
	current, err := tx.LockStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if expected != nil && *expected != "" && *expected != current {
		return "", fmt.Errorf("%w: expected %s, found %s", ErrStaleStatus, *expected, current)
	}
	if !current.CanTransition(target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	if !pipeline.MayRequest(actor.Role, current, target) {
		return "", fmt.Errorf("%w: %s may not move %s -> %s", ErrForbiddenTransition, actor.Role, current, target)
	}
	return current, nil
}

func (s *Service) afterTransition(ctx context.Context, actor Actor, id int64, from, to pipeline.Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to))
	}
	s.record(ctx, actor, "order.status", id, map[string]any{"from": string(from), "to": string(to)})
	if s.notifier == nil {
		return
	}
	var err error
	if to == pipeline.StatusConfirmed {
		err = s.notifier.NotifyConfirmed(ctx, id)
	} else {
		err = s.notifier.NotifyStatusChanged(ctx, id, string(from), string(to))
	}
	if err != nil {
		s.logger.Warn("order notification failed", slog.Any("error", err), slog.Int64("order_id", id), slog.String("to", string(to)))
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err), slog.String("action", action), slog.Int64("order_id", id))
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
