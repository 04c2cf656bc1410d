package services

import (
	"errors"
	"fmt"

	domain "github.com/comandas/api/internal/domain"
	"github.com/comandas/api/internal/repositories"
)

var (
	// ErrValidation signals malformed input: unknown enum values, out-of-range
	// numbers, invalid hex colors, non-positive prices and the like.
	ErrValidation = errors.New("comandas: invalid input")
	// ErrOrderImmutable indicates a mutation attempt on a CLOSED order.
	ErrOrderImmutable = errors.New("comandas: order is closed")
	// ErrPaymentMismatch indicates payments do not sum to the final total.
	ErrPaymentMismatch = errors.New("comandas: payments do not match total")
	// ErrStructuralExtraNotAllowed indicates a structural modifier was added
	// where no variant upgrade path exists.
	ErrStructuralExtraNotAllowed = errors.New("comandas: structural extra not allowed")
	// ErrTablesStillOpen blocks a day close while tables hold open orders.
	ErrTablesStillOpen = errors.New("comandas: tables still open")
	// ErrDayAlreadyClosed indicates a journal already exists for the date.
	ErrDayAlreadyClosed = errors.New("comandas: day already closed")
	// ErrNotFound indicates a missing entity.
	ErrNotFound = errors.New("comandas: not found")
	// ErrConflictingName indicates a per-local unique name collision.
	ErrConflictingName = errors.New("comandas: name already in use")
	// ErrTransient indicates an aborted transaction or expired deadline; the
	// caller may retry.
	ErrTransient = errors.New("comandas: transient failure")
)

// ValidationError carries the offending field alongside ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// PaymentMismatchError reports the expected total against the paid sum.
type PaymentMismatchError struct {
	Expected domain.Money
	Given    domain.Money
}

func (e PaymentMismatchError) Error() string {
	return fmt.Sprintf("%v: expected %s, given %s", ErrPaymentMismatch, e.Expected, e.Given)
}

func (e PaymentMismatchError) Unwrap() error { return ErrPaymentMismatch }

// StructuralExtraError names the product whose structural extra could not be
// absorbed by any variant.
type StructuralExtraError struct {
	ProductName string
}

func (e StructuralExtraError) Error() string {
	return fmt.Sprintf("%v: %s", ErrStructuralExtraNotAllowed, e.ProductName)
}

func (e StructuralExtraError) Unwrap() error { return ErrStructuralExtraNotAllowed }

// TablesStillOpenError carries the number of tables blocking the day close.
type TablesStillOpenError struct {
	Count int
}

func (e TablesStillOpenError) Error() string {
	return fmt.Sprintf("%v: %d open", ErrTablesStillOpen, e.Count)
}

func (e TablesStillOpenError) Unwrap() error { return ErrTablesStillOpen }

// DayAlreadyClosedError carries the operative date of the existing journal.
type DayAlreadyClosedError struct {
	Date domain.OperativeDate
}

func (e DayAlreadyClosedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDayAlreadyClosed, e.Date)
}

func (e DayAlreadyClosedError) Unwrap() error { return ErrDayAlreadyClosed }

// NotFoundError names the missing entity kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrNotFound, e.Kind, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictingNameError names the entity kind and the colliding name.
type ConflictingNameError struct {
	Kind string
	Name string
}

func (e ConflictingNameError) Error() string {
	return fmt.Sprintf("%v: %s %q", ErrConflictingName, e.Kind, e.Name)
}

func (e ConflictingNameError) Unwrap() error { return ErrConflictingName }

// mapRepositoryError normalises persistence failures into the service error
// taxonomy. kind names the entity for not-found reporting.
func mapRepositoryError(err error, kind, id string) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", NotFoundError{Kind: kind, ID: id}, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrTransient, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return err
}
