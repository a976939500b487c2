// Package pipeline defines the order status vocabulary and the legal moves between states.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the lifecycle of an order.
type Status string

const (
	StatusQuotation      Status = "QUOTATION"       // Draft, line items editable
	StatusConfirmed      Status = "CONFIRMED"       // Delivery date agreed, queued for the deposit
	StatusPreparing      Status = "PREPARING"       // Being picked in the deposit
	StatusPrepared       Status = "PREPARED"        // Picked, waiting for control
	StatusQualityChecked Status = "QUALITY_CHECKED" // Checklist approved
	StatusAssigned       Status = "ASSIGNED"        // Assigned to a driver/route
	StatusInDelivery     Status = "IN_DELIVERY"     // Driver on route
	StatusDelivered      Status = "DELIVERED"       // Handed to the client
	StatusCancelled      Status = "CANCELLED"       // Administrative override
)

// ErrUnknownStatus is returned when parsing an unrecognised status.
var ErrUnknownStatus = errors.New("unknown order status")

// forward lists every non-cancel edge of the machine.
var forward = map[Status][]Status{
	StatusQuotation:      {StatusConfirmed},
	StatusConfirmed:      {StatusPreparing},
	StatusPreparing:      {StatusPrepared},
	StatusPrepared:       {StatusQualityChecked, StatusPreparing},
	StatusQualityChecked: {StatusAssigned},
	StatusAssigned:       {StatusInDelivery},
	StatusInDelivery:     {StatusDelivered},
}

// All returns the statuses in pipeline order.
func All() []Status {
	return []Status{
		StatusQuotation,
		StatusConfirmed,
		StatusPreparing,
		StatusPrepared,
		StatusQualityChecked,
		StatusAssigned,
		StatusInDelivery,
		StatusDelivered,
		StatusCancelled,
	}
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// IsValid checks if the status is part of the vocabulary.
func (s Status) IsValid() bool {
	switch s {
	case StatusQuotation, StatusConfirmed, StatusPreparing, StatusPrepared, StatusQualityChecked,
		StatusAssigned, StatusInDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition can leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanEdit reports whether line items may still change.
func (s Status) CanEdit() bool {
	return s == StatusQuotation
}

// CanTransition reports whether moving from s to target is a legal edge.
func (s Status) CanTransition(target Status) bool {
	if !s.IsValid() || !target.IsValid() || s.IsTerminal() {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	for _, next := range forward[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s, cancellation last.
func (s Status) Next() []Status {
	if !s.IsValid() || s.IsTerminal() {
		return nil
	}
	next := append([]Status(nil), forward[s]...)
	return append(next, StatusCancelled)
}

func (s Status) String() string {
	return string(s)
}
