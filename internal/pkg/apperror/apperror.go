// Package apperror holds the error kinds shared by every money-moving path.
// Domain packages wrap these sentinels so handlers can classify with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWalletFrozen        = errors.New("wallet is frozen")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrDuplicateSettlement = errors.New("payment already settled")
	ErrGateway             = errors.New("gateway error")
	ErrPersistence         = errors.New("persistence error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
)

// ValidationError is a rejected input, reported to the client field by field.
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

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError for a single field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Persistence marks err as a storage failure while keeping the driver error reachable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Details flattens err into the field map used by the response envelope.
func Details(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return map[string]string{ve.Field: ve.Message}
	}
	return nil
}
