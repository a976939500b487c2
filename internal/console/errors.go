package console

import "errors"

var (
	ErrClientRequired       = errors.New("console: select a client before saving")
	ErrItemsRequired        = errors.New("console: add at least one product")
	ErrDeliveryDateRequired = errors.New("console: delivery date required")
	ErrDeliveryDateInPast   = errors.New("console: delivery date must be today or later")
	ErrInvalidAmount        = errors.New("console: payment amounts must not be negative")
	ErrPaymentExceedsTotal  = errors.New("console: payments exceed the order total")
	ErrChecklistIncomplete  = errors.New("console: every item must be checked")
	ErrPaymentNotConfirmed  = errors.New("console: payment must be confirmed before delivery")
	ErrUnsavedChanges       = errors.New("console: draft has unsaved changes")
	ErrPartialPayment       = errors.New("console: order confirmed but a payment was not recorded")

	// ErrConflict marks a 409 from the backend, usually a stale status.
	ErrConflict     = errors.New("console: order changed on the server")
	ErrUnauthorized = errors.New("console: session expired or invalid")
	ErrTransport    = errors.New("console: backend unreachable")

	ErrNotLoggedIn      = errors.New("console: not logged in")
	ErrBusy             = errors.New("console: operation already in progress")
	ErrWrongStep        = errors.New("console: confirmation is not at this step")
	ErrActionNotAllowed = errors.New("console: action not allowed for this order")
	ErrNotOnBoard       = errors.New("console: order is not on this board")
	ErrUnknownBoard     = errors.New("console: unknown board")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrClientRequired, "CLIENT_REQUIRED"},
	{ErrItemsRequired, "ITEMS_REQUIRED"},
	{ErrDeliveryDateRequired, "DELIVERY_DATE_REQUIRED"},
	{ErrDeliveryDateInPast, "DELIVERY_DATE_IN_PAST"},
	{ErrInvalidAmount, "INVALID_AMOUNT"},
	{ErrPaymentExceedsTotal, "PAYMENT_EXCEEDS_TOTAL"},
	{ErrChecklistIncomplete, "CHECKLIST_INCOMPLETE"},
	{ErrPaymentNotConfirmed, "PAYMENT_NOT_CONFIRMED"},
	{ErrUnsavedChanges, "UNSAVED_CHANGES"},
	{ErrPartialPayment, "PARTIAL_PAYMENT"},
	{ErrConflict, "CONFLICT"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrTransport, "TRANSPORT"},
	{ErrNotLoggedIn, "NOT_LOGGED_IN"},
	{ErrBusy, "BUSY"},
	{ErrWrongStep, "WRONG_STEP"},
	{ErrActionNotAllowed, "ACTION_NOT_ALLOWED"},
	{ErrNotOnBoard, "NOT_ON_BOARD"},
	{ErrUnknownBoard, "UNKNOWN_BOARD"},
}

// Code maps an error to the stable code shown to operators. Unknown errors
// yield "UNKNOWN"; nil yields "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "UNKNOWN"
}
