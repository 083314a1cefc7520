// Package ledgererr declares the wire-visible error taxonomy the store
// operations in pkg/ledger use for their own failures instead of ad-hoc
// fmt.Errorf strings:
// NotFound, DuplicateError, InvalidState, NotAllowed, DataError,
// InvalidAccess, TypeError, and Timeout.
package ledgererr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the eight taxonomy names. Kind values are stable and
// intended to cross a wire boundary (e.g. an HTTP API built on top of
// this engine), so they are never renamed or renumbered.
type Kind string

const (
	KindNotFound       Kind = "NotFound"
	KindDuplicateError Kind = "DuplicateError"
	KindInvalidState   Kind = "InvalidState"
	KindNotAllowed     Kind = "NotAllowed"
	KindDataError      Kind = "DataError"
	KindInvalidAccess  Kind = "InvalidAccess"
	KindTypeError      Kind = "TypeError"
	KindTimeout        Kind = "Timeout"
)

var httpStatus = map[Kind]int{
	KindNotFound:       http.StatusNotFound,
	KindDuplicateError: http.StatusConflict,
	KindInvalidState:   http.StatusConflict,
	KindNotAllowed:     http.StatusForbidden,
	KindDataError:      http.StatusBadRequest,
	KindInvalidAccess:  http.StatusForbidden,
	KindTypeError:      http.StatusBadRequest,
	KindTimeout:        http.StatusGatewayTimeout,
}

// LedgerError is the concrete error type every taxonomy constructor
// returns. Details carries structured context (e.g. the offending hash
// or field name) for callers that want more than the message string.
type LedgerError struct {
	Kind       Kind
	Message    string
	Details    map[string]interface{}
	HTTPStatus int
	cause      error
}

func (e *LedgerError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes a wrapped cause, if any, to errors.Is/errors.As.
func (e *LedgerError) Unwrap() error {
	return e.cause
}

func newErr(kind Kind, msg string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Kind:       kind,
		Message:    msg,
		Details:    details,
		HTTPStatus: httpStatus[kind],
	}
}

// NotFound builds a NotFound error for a missing entity.
func NotFound(msg string, details map[string]interface{}) error {
	return newErr(KindNotFound, msg, details)
}

// Duplicate builds a DuplicateError for a uniqueness-index collision.
func Duplicate(msg string, details map[string]interface{}) error {
	return newErr(KindDuplicateError, msg, details)
}

// InvalidState builds an InvalidState error for a referential-invariant
// violation (e.g. a block referencing an event that does not exist).
func InvalidState(msg string, details map[string]interface{}) error {
	return newErr(KindInvalidState, msg, details)
}

// NotAllowed builds a NotAllowed error for a patch touching a field
// outside the allowed meta.* surface.
func NotAllowed(msg string, details map[string]interface{}) error {
	return newErr(KindNotAllowed, msg, details)
}

// DataError builds a DataError for malformed input content (e.g. an
// operation event missing its operationHash list).
func DataError(msg string, details map[string]interface{}) error {
	return newErr(KindDataError, msg, details)
}

// InvalidAccess builds an InvalidAccess error for an unauthorized or
// unregistered caller action (e.g. a plugin that does not declare the
// ledger storage plugin type).
func InvalidAccess(msg string, details map[string]interface{}) error {
	return newErr(KindInvalidAccess, msg, details)
}

// TypeError builds a TypeError for an argument of the wrong shape (e.g.
// a negative maxBlockHeight).
func TypeError(msg string, details map[string]interface{}) error {
	return newErr(KindTypeError, msg, details)
}

// Timeout builds a Timeout error, wrapping the underlying deadline
// cause so errors.Is(err, context.DeadlineExceeded) keeps working.
func Timeout(msg string, cause error) error {
	e := newErr(KindTimeout, msg, nil)
	e.cause = cause
	return e
}

// Is reports whether err is a *LedgerError of the given Kind.
func Is(err error, kind Kind) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind == kind
	}
	return false
}
