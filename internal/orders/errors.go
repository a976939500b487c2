package orders

import (
	"github.com/odyssey-erp/distro/internal/platform/httpx"
)

// domainError tags a failure with a stable code and the httpx class used to
// pick the response status.
type domainError struct {
	code string
	msg  string
	kind error
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Code() string  { return e.code }
func (e *domainError) Unwrap() error { return e.kind }

func newError(kind error, code, msg string) error {
	return &domainError{code: code, msg: msg, kind: kind}
}

// Domain errors for orders.
var (
	ErrNotFound        = newError(httpx.ErrNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrClientNotFound  = newError(httpx.ErrUnprocessable, "CLIENT_NOT_FOUND", "client not found")
	ErrProductNotFound = newError(httpx.ErrUnprocessable, "PRODUCT_NOT_FOUND", "product not found")

	// Validation errors.
	ErrClientRequired       = newError(httpx.ErrValidation, "CLIENT_REQUIRED", "a client is required")
	ErrItemsRequired        = newError(httpx.ErrValidation, "ITEMS_REQUIRED", "at least one item is required")
	ErrDeliveryDateRequired = newError(httpx.ErrValidation, "DELIVERY_DATE_REQUIRED", "delivery date is required")
	ErrInvalidDeliveryDate  = newError(httpx.ErrValidation, "DELIVERY_DATE_IN_PAST", "delivery date cannot be in the past")
	ErrInvalidAmount        = newError(httpx.ErrValidation, "INVALID_AMOUNT", "payment amount must be greater than zero")
	ErrReferenceNotAllowed  = newError(httpx.ErrValidation, "REFERENCE_NOT_ALLOWED", "only transfer payments carry a reference")
	ErrSearchCriteria       = newError(httpx.ErrValidation, "SEARCH_CRITERIA_REQUIRED", "name or phone is required")
	ErrUnknownStatus        = newError(httpx.ErrValidation, "UNKNOWN_STATUS", "unknown order status")

	// Status transition errors.
	ErrCannotEdit          = newError(httpx.ErrConflict, "CANNOT_EDIT", "order items can only change while in QUOTATION")
	ErrCannotConfirm       = newError(httpx.ErrConflict, "CANNOT_CONFIRM", "only quotations can be confirmed")
	ErrInvalidTransition   = newError(httpx.ErrConflict, "INVALID_TRANSITION", "status transition not allowed")
	ErrStaleStatus         = newError(httpx.ErrConflict, "STALE_STATUS", "order status changed since it was loaded")
	ErrForbiddenTransition = newError(httpx.ErrForbidden, "TRANSITION_FORBIDDEN", "role may not request this transition")
	ErrUseConfirm          = newError(httpx.ErrUnprocessable, "USE_CONFIRM", "confirmation must go through the confirm operation")
	ErrUseDelivery         = newError(httpx.ErrUnprocessable, "USE_DELIVERY", "delivery must go through the delivery confirmation")

	// Gate errors.
	ErrChecklistIncomplete = newError(httpx.ErrUnprocessable, "CHECKLIST_INCOMPLETE", "every item must be checked before quality approval")
	ErrPaymentNotConfirmed = newError(httpx.ErrUnprocessable, "PAYMENT_NOT_CONFIRMED", "payment receipt must be acknowledged before delivery")

	// Payment errors.
	ErrPaymentExceedsTotal = newError(httpx.ErrUnprocessable, "PAYMENT_EXCEEDS_TOTAL", "payments exceed the order total")
	ErrPaymentNotAllowed   = newError(httpx.ErrConflict, "PAYMENT_NOT_ALLOWED", "payments require a confirmed, active order")
	ErrDuplicatePayment    = newError(httpx.ErrDuplicate, "DUPLICATE_REQUEST", "payment request already processed")
)
