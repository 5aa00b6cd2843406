package translate

import (
	"errors"
	"fmt"
)

// ErrorStatus identifies the failure class of a client error.
type ErrorStatus string

const (
	// ErrorStatusConnection covers failures to establish the stream.
	ErrorStatusConnection ErrorStatus = "connection_error"
	// ErrorStatusSend covers failed outbound writes.
	ErrorStatusSend ErrorStatus = "send_error"
	// ErrorStatusDecode covers malformed inbound payloads.
	ErrorStatusDecode ErrorStatus = "decode_error"
	// ErrorStatusProtocol covers error frames reported by the vendor.
	ErrorStatusProtocol ErrorStatus = "protocol_error"
	// ErrorStatusTimeout covers receive timeouts.
	ErrorStatusTimeout ErrorStatus = "timeout_error"
	// ErrorStatusClosed covers a stream closed by the remote side.
	ErrorStatusClosed ErrorStatus = "connection_closed"
	// ErrorStatusInvalidState covers operations issued in the wrong phase.
	ErrorStatusInvalidState ErrorStatus = "invalid_state"
)

// Error is the typed error returned by the client.
type Error struct {
	Status  ErrorStatus
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("translate: %s: %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("translate: %s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with a status and message.
func NewError(status ErrorStatus, message string) *Error {
	return &Error{Status: status, Message: message}
}

// NewErrorWithCause creates an Error wrapping an underlying cause.
func NewErrorWithCause(status ErrorStatus, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Cause: cause}
}

// IsErrorStatus reports whether err is a client Error with the given status.
func IsErrorStatus(err error, status ErrorStatus) bool {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Status == status
	}
	return false
}

var (
	// ErrNotConnected is returned by send operations outside the open phase.
	ErrNotConnected = NewError(ErrorStatusInvalidState, "session is not connected")
)
