package domain

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes surfaced to API callers.
const (
	CodeDuplicateConnection = "DUPLICATE_CONNECTION"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeNotConnected        = "NOT_CONNECTED"
	CodeInvalidState        = "INVALID_STATE"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeSyncInProgress      = "SYNC_IN_PROGRESS"
	CodeValidation          = "VALIDATION_ERROR"
)

// CodedError pairs a stable code with a human-readable message. Callers
// match on the sentinel values below with errors.Is.
type CodedError struct {
	Code    string
	Message string
	err     error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.err }

// Is matches any CodedError carrying the same code, so sentinel comparison
// works regardless of the message.
func (e *CodedError) Is(target error) bool {
	var t *CodedError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrDuplicateConnection = &CodedError{Code: CodeDuplicateConnection, Message: "an active connection to this domain already exists"}
	ErrLimitExceeded       = &CodedError{Code: CodeLimitExceeded, Message: "active connection limit reached for plan"}
	ErrNotFound            = &CodedError{Code: CodeNotFound, Message: "not found"}
	ErrNotConnected        = &CodedError{Code: CodeNotConnected, Message: "connection has no usable credential"}
	ErrInvalidState        = &CodedError{Code: CodeInvalidState, Message: "operation not valid in current connection state"}
	ErrSyncInProgress      = &CodedError{Code: CodeSyncInProgress, Message: "a sync for this store is already running"}
)

// NewNotFoundError builds a NOT_FOUND error naming the missing resource.
func NewNotFoundError(what string) error {
	return &CodedError{Code: CodeNotFound, Message: what + " not found"}
}

// NewValidationError builds a VALIDATION_ERROR with the given message.
func NewValidationError(msg string) error {
	return &CodedError{Code: CodeValidation, Message: msg}
}

// NewUpstreamError wraps a platform API failure. The wrapped error is kept
// for logging; callers match on the code.
func NewUpstreamError(op string, err error) error {
	return &CodedError{Code: CodeUpstreamError, Message: "upstream " + op + " failed: " + err.Error(), err: err}
}

// IsUpstreamError reports whether err carries the UPSTREAM_ERROR code.
func IsUpstreamError(err error) bool {
	var c *CodedError
	return errors.As(err, &c) && c.Code == CodeUpstreamError
}
