package tablebook

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrInvalidDateTime      = errors.New("invalid date or time")
	ErrInvalidHolderName    = errors.New("invalid holder name")
	ErrUnknownTable         = errors.New("unknown table")
	ErrBookingInPast        = errors.New("booking time is in the past")
	ErrTableUnavailable     = errors.New("table unavailable")
	ErrNoBooking            = errors.New("no booking")
	ErrBookingExpired       = errors.New("booking expired")
	ErrEmptyCart            = errors.New("empty cart")
	ErrNoActiveCard         = errors.New("no active payment card")
	ErrStaleCheckout        = errors.New("stale checkout")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrCommentTooLong       = errors.New("comment too long")
	ErrInvalidServingMode   = errors.New("invalid serving mode")
	ErrServingOutsideWindow = errors.New("serving time outside booking window")
	ErrInvalidCardNumber    = errors.New("invalid card number")
	ErrInvalidExpiry        = errors.New("invalid card expiry")
	ErrCardNotFound         = errors.New("card not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrPhoneTaken           = errors.New("phone already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRegistration  = errors.New("invalid registration")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
