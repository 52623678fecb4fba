package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOverpayment       = errors.New("overpayment")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity, id string) error { return &NotFoundError{Entity: entity, ID: id} }

// StateError reports an operation that is illegal for the entity's current status.
type StateError struct {
	Entity string
	ID     string
	Status string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s is %s: %s", e.Entity, e.ID, e.Status, e.Reason)
}
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

func InvalidState(entity, id, status, reason string) error {
	return &StateError{Entity: entity, ID: id, Status: status, Reason: reason}
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type OverpaymentError struct {
	Total     decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance %s (total %s, paid %s)",
		e.Attempted.StringFixed(2), e.Remaining.StringFixed(2), e.Total.StringFixed(2), e.Paid.StringFixed(2))
}
func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

type ForbiddenError struct {
	ActorID string
	Role    Role
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s (%s) may not %s", e.ActorID, e.Role, e.Action)
}
func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

func Forbidden(a Actor, action string) error {
	return &ForbiddenError{ActorID: a.ID, Role: a.Role, Action: action}
}

// ConflictError is returned when a lock cannot be taken in time or a conditional write lost a race.
type ConflictError struct {
	Key    string
	Reason string
}

func (e *ConflictError) Error() string { return fmt.Sprintf("conflict on %s: %s", e.Key, e.Reason) }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(key, reason string) error { return &ConflictError{Key: key, Reason: reason} }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
