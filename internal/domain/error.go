package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Application error codes.
// These map to HTTP status codes and determine user-facing messages.
const (
	EINVALID  = "invalid"  // 400 - Validation error (bad input)
	ECONFIG   = "config"   // 500 - Credential configuration incomplete
	EAUTH     = "auth"     // 500 - Token acquisition failed
	EDELIVERY = "delivery" // 500 - Mail API rejected the send
	EINTERNAL = "internal" // 500 - Anything else (hide details)
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, EAUTH).
	Code string

	// Message is a human-readable error message. Only EINVALID messages
	// are shown to users.
	Message string

	// Op is the operation where the error occurred (e.g., "relay.send").
	// Used for logging, not shown to users.
	Op string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a message that is safe to show to users.
// Server-side failures get the generic message; the fallback contact, when
// known, is appended so the visitor still has a way to reach a human.
func ErrorMessage(err error, fallbackContact string) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Code == EINVALID {
		return e.Message
	}

	if fallbackContact != "" {
		return fmt.Sprintf("Sorry, we couldn't send your message right now. Please email us directly at %s.", fallbackContact)
	}
	return "Sorry, we couldn't send your message right now. Please try again later."
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case EINVALID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Invalid creates a validation error. The message is shown to the user.
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Config creates a configuration error. The message must name variables,
// never their values.
func Config(op, message string) error {
	return &Error{
		Code:    ECONFIG,
		Op:      op,
		Message: message,
	}
}

// Auth wraps a token acquisition failure.
func Auth(err error, op, message string) error {
	return &Error{
		Code:    EAUTH,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Delivery wraps a mail API failure.
func Delivery(err error, op, message string) error {
	return &Error{
		Code:    EDELIVERY,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Internal creates an internal error (wraps underlying error).
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
