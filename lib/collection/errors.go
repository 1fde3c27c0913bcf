package collection

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by collections and providers. It wraps a
// return code (of type RetCode) and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause, if any. Not part of Msg.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CollectionError (code %s): %s", e.Code, e.Msg)
}

// Is matches errors by return code, so errors.Is(err, ErrConfiguration) holds
// for every configuration error regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error with code whose message is the message of err.
func Wrap(code RetCode, err error) *Error {
	return &Error{Code: code, Msg: message(err), Err: err}
}

// Wrapf creates an Error with code and the message "<format>: <message of err>".
func Wrapf(code RetCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...) + ": " + message(err), Err: err}
}

// message returns the message of err without the prefix of an Error.
func message(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return err.Error()
}

// Sentinels for errors.Is.
var (
	ErrInternal         = &Error{Code: RetCInternalError}
	ErrUnsupported      = &Error{Code: RetCUnsupportedOperation}
	ErrInvalidOperation = &Error{Code: RetCInvalidOperation}
	ErrConfiguration    = &Error{Code: RetCConfiguration}
	ErrNotImplemented   = &Error{Code: RetCNotImplemented}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the underlying provider.
	RetCInvalidOperation                    // 3: Invalid operation or argument.
	RetCConfiguration                       // 4: Missing or inconsistent configuration.
	RetCNotImplemented                      // 5: Operation has no implementation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConfiguration:
		return "Configuration"
	case RetCNotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}
