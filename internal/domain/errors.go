package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                   = errors.New("not found")
	ErrInsufficientStock          = errors.New("insufficient stock")
	ErrInsufficientAvailableStock = errors.New("insufficient available stock")
	ErrPartUnavailable            = errors.New("part unavailable")
	ErrAmountMismatch             = errors.New("payment amount mismatch")
	ErrMissingAddress             = errors.New("missing shipping address")
	ErrInvalidTransition          = errors.New("invalid status transition")
	ErrDuplicateResource          = errors.New("duplicate resource")
	ErrValidation                 = errors.New("validation failed")
)

// InsufficientStockError reports a deduction larger than the part's stock.
type InsufficientStockError struct {
	PartID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %s: requested %d, available %d", e.PartID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InsufficientAvailableStockError reports a reservation that exceeds
// stock not already held by other sessions.
type InsufficientAvailableStockError struct {
	PartID    string
	Requested int
	Available int
}

func (e *InsufficientAvailableStockError) Error() string {
	return fmt.Sprintf("insufficient available stock for part %s: requested %d, available %d", e.PartID, e.Requested, e.Available)
}

func (e *InsufficientAvailableStockError) Is(target error) bool {
	return target == ErrInsufficientAvailableStock
}

type PartUnavailableError struct {
	PartID string
	Reason string
}

func (e *PartUnavailableError) Error() string {
	return fmt.Sprintf("part %s unavailable: %s", e.PartID, e.Reason)
}

func (e *PartUnavailableError) Is(target error) bool { return target == ErrPartUnavailable }

type AmountMismatchError struct {
	OrderID  string
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment for order %s must be %s, got %s", e.OrderID, e.Expected.StringFixed(2), e.Got.String())
}

func (e *AmountMismatchError) Is(target error) bool { return target == ErrAmountMismatch }

type MissingAddressError struct {
	OrderID string
}

func (e *MissingAddressError) Error() string {
	return fmt.Sprintf("order %s has no shipping address and the customer has no location", e.OrderID)
}

func (e *MissingAddressError) Is(target error) bool { return target == ErrMissingAddress }

// InvalidTransitionError rejects a status change on an order or on the
// payment or shipment attached to it. OrderID always names the order.
type InvalidTransitionError struct {
	Resource string
	OrderID  string
	From     string
	To       string
}

func (e *InvalidTransitionError) Error() string {
	if e.Resource == "order" {
		return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
	}
	return fmt.Sprintf("%s of order %s cannot move from %s to %s", e.Resource, e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type DuplicateResourceError struct {
	Resource string
	OrderID  string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("order %s already has a %s", e.OrderID, e.Resource)
}

func (e *DuplicateResourceError) Is(target error) bool { return target == ErrDuplicateResource }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
