package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/distro/internal/pipeline"
)

const dateLayout = "2006-01-02"

// Step is the position of the confirmation dialog.
type Step int

const (
	StepForm Step = iota
	StepSummary
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepForm:
		return "form"
	case StepSummary:
		return "summary"
	case StepConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// ConfirmForm is what the operator fills before confirming a quotation.
type ConfirmForm struct {
	DeliveryAddress   string
	DeliveryDate      string
	Latitude          *float64
	Longitude         *float64
	Cash              decimal.Decimal
	Transfer          decimal.Decimal
	TransferReference string
}

// Confirmation drives a draft from quotation to confirmed order with its
// partial payments: form, summary, confirmed.
type Confirmation struct {
	editor  *Editor
	gateway Gateway
	logger  *slog.Logger
	printer *message.Printer
	newKey  func() string

	step         Step
	form         ConfirmForm
	deliveryDate time.Time
	orderID      int64
	pending      []PaymentRequest
	busy         atomic.Bool
}

// NewConfirmation binds a confirmation dialog to the editor's draft.
func NewConfirmation(editor *Editor) *Confirmation {
	return &Confirmation{
		editor:  editor,
		gateway: editor.gateway,
		logger:  editor.logger,
		printer: message.NewPrinter(language.MustParse("es-AR")),
		newKey:  uuid.NewString,
	}
}

func (c *Confirmation) Step() Step        { return c.step }
func (c *Confirmation) Form() ConfirmForm { return c.form }

// OrderID returns the id of the confirmed order once StepConfirmed is reached.
func (c *Confirmation) OrderID() int64 { return c.orderID }

// PendingPayments lists payments still to be recorded after a partial failure.
func (c *Confirmation) PendingPayments() []PaymentRequest {
	return append([]PaymentRequest(nil), c.pending...)
}

// SetForm replaces the form values while at StepForm.
func (c *Confirmation) SetForm(form ConfirmForm) error {
	if c.step != StepForm {
		return ErrWrongStep
	}
	c.form = form
	return nil
}

// Review validates the form against the draft and moves to the summary.
func (c *Confirmation) Review(now time.Time) error {
	if c.step != StepForm {
		return ErrWrongStep
	}
	d := c.editor.Draft()
	if d.Client == nil {
		return ErrClientRequired
	}
	if len(d.Items) == 0 {
		return ErrItemsRequired
	}
	date, err := ValidateDeliveryDate(c.form.DeliveryDate, now)
	if err != nil {
		return err
	}
	if err := ValidatePayments(c.form.Cash, c.form.Transfer, d.Total()); err != nil {
		return err
	}
	c.deliveryDate = date
	c.step = StepSummary
	return nil
}

// Back returns from the summary to the form.
func (c *Confirmation) Back() {
	if c.step == StepSummary {
		c.step = StepForm
	}
}

// Confirm persists pending edits, confirms the order and records the
// payments, cash first. A failed forced save aborts with ErrUnsavedChanges
// unless acknowledged; an acknowledged failure confirms the last saved items.
func (c *Confirmation) Confirm(ctx context.Context, acknowledged bool) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)
	if c.step != StepSummary {
		return ErrWrongStep
	}
	d := c.editor.Draft()
	if err := ValidatePayments(c.form.Cash, c.form.Transfer, d.Total()); err != nil {
		return err
	}

	if d.Dirty() || d.OrderID == nil {
		if err := c.editor.SaveOrder(ctx); err != nil {
			if d.OrderID == nil || !acknowledged {
				return fmt.Errorf("%w: %w", ErrUnsavedChanges, err)
			}
			c.logger.Warn("confirming without latest edits", slog.Int64("order_id", *d.OrderID), slog.Any("error", err))
		}
	}

	id := *d.OrderID
	if err := c.gateway.ConfirmOrder(ctx, id, c.confirmRequest()); err != nil {
		c.logger.Warn("confirm order failed", slog.Int64("order_id", id), slog.Any("error", err))
		return err
	}
	d.Status = pipeline.StatusConfirmed
	d.readOnly = true
	c.orderID = id
	c.step = StepConfirmed
	c.pending = c.payments()
	c.logger.Info("order confirmed", slog.Int64("order_id", id), slog.Int("payments", len(c.pending)))

	if err := c.sendPending(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPartialPayment, err)
	}
	c.editor.NewOrder()
	return nil
}

// RetryPayments resends payments left over from a partial failure reusing their
// idempotency keys.
func (c *Confirmation) RetryPayments(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)
	if c.step != StepConfirmed {
		return ErrWrongStep
	}
	if len(c.pending) == 0 {
		return nil
	}
	if err := c.sendPending(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPartialPayment, err)
	}
	c.editor.NewOrder()
	return nil
}

// Reset prepares the dialog for the next order.
func (c *Confirmation) Reset() {
	c.step = StepForm
	c.form = ConfirmForm{}
	c.deliveryDate = time.Time{}
	c.orderID = 0
	c.pending = nil
}

// Summary renders the recap shown before the operator confirms.
func (c *Confirmation) Summary() []string {
	d := c.editor.Draft()
	lines := make([]string, 0, len(d.Items)+6)
	if d.Client != nil {
		lines = append(lines, c.printer.Sprintf("Cliente: %s", d.Client.Name))
	}
	for _, it := range d.Items {
		lines = append(lines, c.printer.Sprintf("%d x %s  %s", it.Quantity, it.Description, c.money(it.LineTotal())))
	}
	total := d.Total()
	paid := c.form.Cash.Add(c.form.Transfer)
	lines = append(lines,
		c.printer.Sprintf("Total: %s", c.money(total)),
		c.printer.Sprintf("Efectivo: %s", c.money(c.form.Cash)),
		c.printer.Sprintf("Transferencia: %s", c.money(c.form.Transfer)),
		c.printer.Sprintf("Saldo: %s", c.money(total.Sub(paid))),
	)
	if !c.deliveryDate.IsZero() {
		lines = append(lines, c.printer.Sprintf("Entrega: %s", c.deliveryDate.Format("02/01/2006")))
	}
	return lines
}

func (c *Confirmation) money(amount decimal.Decimal) string {
	return c.printer.Sprintf("$ %v", number.Decimal(amount.InexactFloat64(), number.Scale(2)))
}

func (c *Confirmation) confirmRequest() ConfirmRequest {
	req := ConfirmRequest{DeliveryDate: c.deliveryDate.Format(dateLayout)}
	if addr := strings.TrimSpace(c.form.DeliveryAddress); addr != "" {
		req.DeliveryAddress = &addr
	}
	if c.form.Latitude != nil && c.form.Longitude != nil {
		lat, lng := *c.form.Latitude, *c.form.Longitude
		req.Latitude = &lat
		req.Longitude = &lng
	}
	return req
}

func (c *Confirmation) payments() []PaymentRequest {
	var out []PaymentRequest
	if c.form.Cash.IsPositive() {
		out = append(out, PaymentRequest{Amount: c.form.Cash, Method: PaymentCash, IdempotencyKey: c.newKey()})
	}
	if c.form.Transfer.IsPositive() {
		p := PaymentRequest{Amount: c.form.Transfer, Method: PaymentTransfer, IdempotencyKey: c.newKey()}
		if ref := strings.TrimSpace(c.form.TransferReference); ref != "" {
			p.Reference = &ref
		}
		out = append(out, p)
	}
	return out
}

func (c *Confirmation) sendPending(ctx context.Context) error {
	for len(c.pending) > 0 {
		p := c.pending[0]
		if err := c.gateway.RecordPayment(ctx, c.orderID, p); err != nil {
			c.logger.Warn("record payment failed",
				slog.Int64("order_id", c.orderID),
				slog.String("method", string(p.Method)),
				slog.Any("error", err))
			return err
		}
		c.pending = c.pending[1:]
	}
	return nil
}

// ValidateDeliveryDate parses a YYYY-MM-DD date and rejects days before today.
func ValidateDeliveryDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrDeliveryDateRequired
	}
	date, err := time.ParseInLocation(dateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, ErrDeliveryDateRequired
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return time.Time{}, ErrDeliveryDateInPast
	}
	return date, nil
}

// ValidatePayments checks the confirmation amounts against the order total.
func ValidatePayments(cash, transfer, total decimal.Decimal) error {
	if cash.IsNegative() || transfer.IsNegative() {
		return ErrInvalidAmount
	}
	if cash.Add(transfer).GreaterThan(total) {
		return ErrPaymentExceedsTotal
	}
	return nil
}
