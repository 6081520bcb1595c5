package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound            = errors.New("not found")
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrTrainRunNotFound    = fmt.Errorf("train run %w", ErrNotFound)

	// ErrInsufficientSeats is returned by the seat inventory; the lifecycle
	// reports it to callers as ErrNoSeatsAvailable.
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrNoSeatsAvailable  = errors.New("no seats available")

	ErrInvalidState     = errors.New("invalid reservation state")
	ErrAlreadyCancelled = fmt.Errorf("reservation already cancelled: %w", ErrInvalidState)

	ErrInventoryInconsistency = errors.New("seat inventory inconsistency")
	ErrDuplicatePNR           = errors.New("duplicate pnr")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports errors caused by the current state of seats or the reservation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoSeatsAvailable) ||
		errors.Is(err, ErrInsufficientSeats) ||
		errors.Is(err, ErrInvalidState)
}

// IsBenignTransition reports whether err means another actor already moved the
// reservation out of the state the caller expected.
func IsBenignTransition(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
