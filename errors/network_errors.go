package errors

import (
	"github.com/mezonai/sequencer/jsonx"
)

// NetworkErrorCode represents standardized error codes for client facing APIs
type NetworkErrorCode string

const (
	// General errors
	ErrCodeInternal NetworkErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest     NetworkErrorCode = "invalid_request"
	ErrCodeInvalidTransaction NetworkErrorCode = "invalid_transaction"
	ErrCodeInvalidSignature   NetworkErrorCode = "invalid_signature"
	ErrCodeInvalidEncoding    NetworkErrorCode = "invalid_encoding"

	// Business logic errors
	ErrCodeTransactionNotFound  NetworkErrorCode = "transaction_not_found"
	ErrCodeBlockNotFound        NetworkErrorCode = "block_not_found"
	ErrCodeDuplicateTransaction NetworkErrorCode = "duplicate_transaction"

	// System errors
	ErrCodeStoreUnavailable NetworkErrorCode = "store_unavailable"
	ErrCodeRateLimited      NetworkErrorCode = "rate_limited"
)

// NetworkError represents a standardized client facing error
type NetworkError struct {
	Code    NetworkErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error renders the error as its JSON form
func (e *NetworkError) Error() string {
	err, _ := jsonx.Marshal(NetworkError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest         = "Request format is invalid"
	ErrMsgInvalidTransaction     = "Transaction data is invalid"
	ErrMsgInvalidSignature       = "Transaction signature is invalid"
	ErrMsgInvalidEncoding        = "Payload encoding must be base58 or base64"
	ErrMsgTransactionNotFound    = "Transaction could not be found"
	ErrMsgBlockNotFound          = "Block could not be found"
	ErrMsgDuplicateTransaction   = "This transaction already exists"
	ErrMsgStoreUnavailable       = "Block history is not available on this node"
	ErrMsgInternal               = "Server error, please try again"
	ErrMsgRateLimited            = "Too many requests, please slow down"
	ErrMsgRequestBodyTooLarge    = "Request body exceeds maximum allowed size (%d bytes)"
	ErrMsgTransactionTooLarge    = "Transaction exceeds %d bytes"
	ErrMsgTransactionNoSignature = "Transaction carries no signature"
)

// NewError creates a new NetworkError and returns it as error interface
func NewError(code NetworkErrorCode, message string) error {
	return &NetworkError{
		Code:    code,
		Message: message,
	}
}
