package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/distro/internal/console"
)

// Error is a non-2xx response decoded from the backend problem document.
type Error struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("api %d %s", e.Status, e.Title)
}

// backend codes that match a console validation error.
var codeErrors = map[string]error{
	"CLIENT_REQUIRED":        console.ErrClientRequired,
	"ITEMS_REQUIRED":         console.ErrItemsRequired,
	"DELIVERY_DATE_REQUIRED": console.ErrDeliveryDateRequired,
	"DELIVERY_DATE_IN_PAST":  console.ErrDeliveryDateInPast,
	"INVALID_AMOUNT":         console.ErrInvalidAmount,
	"PAYMENT_EXCEEDS_TOTAL":  console.ErrPaymentExceedsTotal,
	"CHECKLIST_INCOMPLETE":   console.ErrChecklistIncomplete,
	"PAYMENT_NOT_CONFIRMED":  console.ErrPaymentNotConfirmed,
}

// Unwrap lets errors.Is match the console sentinels: ErrConflict for 409,
// ErrUnauthorized for 401, ErrTransport for every other status, plus the
// validation error named by the problem code.
func (e *Error) Unwrap() []error {
	var out []error
	switch e.Status {
	case http.StatusConflict:
		out = append(out, console.ErrConflict)
	case http.StatusUnauthorized:
		out = append(out, console.ErrUnauthorized)
	default:
		out = append(out, console.ErrTransport)
	}
	if err, ok := codeErrors[e.Code]; ok {
		out = append(out, err)
	}
	return out
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
