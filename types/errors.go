package types

import (
	"errors"
	"fmt"
)

// Error codes returned by gateway operations.
const (
	ErrCodeInvalidAddress      = "INVALID_ADDRESS"
	ErrCodeUnsupportedToken    = "UNSUPPORTED_TOKEN"
	ErrCodeAmountOutOfRange    = "AMOUNT_OUT_OF_RANGE"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeNetworkUnavailable  = "NETWORK_UNAVAILABLE"
	ErrCodeSerializationFailed = "SERIALIZATION_FAILED"
	ErrCodeDeadlineExceeded    = "DEADLINE_EXCEEDED"
	ErrCodeTxNotFound          = "TRANSACTION_NOT_FOUND"
	ErrCodeTxFailed            = "TRANSACTION_FAILED"
	ErrCodePaymentNotFound     = "PAYMENT_NOT_FOUND"
	ErrCodePaymentExpired      = "PAYMENT_EXPIRED"
	ErrCodeConfigInvalid       = "CONFIG_INVALID"
)

// PaymentError is the error type returned by all gateway operations.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *PaymentError) Error() string {
	return e.Message
}

// NewPaymentError creates a PaymentError with the given code and message.
func NewPaymentError(code, message string, data any) *PaymentError {
	return &PaymentError{Code: code, Message: message, Data: data}
}

// Errorf creates a PaymentError with a formatted message.
func Errorf(code, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the payment error code from err, unwrapping as needed.
// It returns the empty string when err carries no PaymentError.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries a PaymentError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
