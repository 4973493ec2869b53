// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input provided")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// IsClientError reports whether err is something the caller can fix by changing the request.
func IsClientError(err error) bool {
	return IsError(err, ErrInvalidInput) || IsError(err, ErrInvalidAmount) || IsError(err, ErrInsufficientFunds)
}
