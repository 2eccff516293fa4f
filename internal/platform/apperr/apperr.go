// Package apperr defines the error taxonomy shared by the record services and
// its translation into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for propagation and response mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindPersistence   Kind = "persistence"
)

// Common error codes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeNotFound           = "NOT_FOUND"
	CodePersistence        = "PERSISTENCE_FAILURE"
)

// Generic messages for kinds whose detail must not reach the caller.
const (
	MsgForbidden   = "you are not allowed to perform this action"
	MsgCredentials = "credential verification failed"
	MsgRetry       = "the request could not be completed, please retry"
)

// Error is a categorized application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// CurrentStatus is set on state errors so the caller can refresh.
	CurrentStatus string
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Forbidden is the generic authorization denial. The detail is kept as the
// cause for logging only.
func Forbidden(detail string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: MsgForbidden, Cause: errors.New(detail)}
}

// InvalidCredentials reports a failed credential re-verification.
func InvalidCredentials() *Error {
	return &Error{Kind: KindAuthorization, Code: CodeInvalidCredentials, Message: MsgCredentials}
}

// State reports an illegal transition from current.
func State(current, format string, args ...interface{}) *Error {
	return &Error{
		Kind:          KindState,
		Code:          CodeInvalidTransition,
		Message:       fmt.Sprintf(format, args...),
		CurrentStatus: current,
	}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// Persistence wraps a datastore failure. The message shown to callers is
// always generic.
func Persistence(op string, cause error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Message: op, Cause: cause}
}

// KindOf returns the kind of err, treating uncategorized errors as
// persistence failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusServiceUnavailable
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		if e.Code == CodeInvalidCredentials {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case KindState:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// PublicMessage returns the message that may be shown to the caller.
// Authorization and persistence failures are always generic.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return MsgRetry
	}
	switch e.Kind {
	case KindAuthorization:
		if e.Code == CodeInvalidCredentials {
			return MsgCredentials
		}
		return MsgForbidden
	case KindPersistence:
		return MsgRetry
	default:
		return e.Message
	}
}

// CurrentStatus returns the status carried by a state error, if any.
func CurrentStatus(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CurrentStatus
	}
	return ""
}
