// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer. Domain packages wrap these so handlers can
// map failures without knowing every package's error set.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("business rule violated")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
)

// CodedError carries a stable machine-readable code next to the message.
type CodedError interface {
	error
	Code() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	code := ""
	var coded CodedError
	if errors.As(err, &coded) {
		code = coded.Code()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case errors.Is(err, ErrDuplicate):
		ProblemCode(w, http.StatusConflict, "Duplicate", err.Error(), code)
	case errors.Is(err, ErrConflict):
		ProblemCode(w, http.StatusConflict, "Conflict", err.Error(), code)
	case errors.Is(err, ErrValidation):
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case errors.Is(err, ErrUnprocessable):
		ProblemCode(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error(), code)
	case errors.Is(err, ErrForbidden):
		ProblemCode(w, http.StatusForbidden, "Forbidden", err.Error(), code)
	case errors.Is(err, ErrUnauthorized):
		ProblemCode(w, http.StatusUnauthorized, "Unauthorized", err.Error(), code)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
