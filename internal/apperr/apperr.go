// Package apperr defines the error kinds surfaced by the gate backend.
//
// Every error that crosses the domain boundary carries a stable Kind that
// clients can switch on, a human readable message, and optionally per-field
// validation details. The wrapped cause is kept for logging only and is never
// serialized.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind categorizes an error.
type Kind string

const (
	KindInvalidInput     Kind = "InvalidInput"
	KindConflict         Kind = "Conflict"
	KindNotFound         Kind = "NotFound"
	KindForbidden        Kind = "Forbidden"
	KindUnauthorized     Kind = "Unauthorized"
	KindStoreUnavailable Kind = "StoreUnavailable"
)

// Error is a domain error with a stable kind.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps an input field name to what is wrong with it.
	Fields map[string]string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(" (")
		for i, name := range names {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", name, e.Fields[name])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind so that errors.Is(err, apperr.ErrConflict) works for
// any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

func InvalidInput(message string, fields map[string]string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Fields: fields}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Unavailable wraps a store failure. The operation is safe to retry.
func Unavailable(op string, cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: op + " failed, retry later", Cause: cause}
}

// KindOf returns the kind of err, or StoreUnavailable for errors that are
// not *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// Body is the JSON shape of an error returned to clients.
type Body struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ToBody converts err into a client-safe body. Errors that are not *Error
// are reported as a generic StoreUnavailable without internal detail.
func ToBody(err error) Body {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" {
			msg = string(e.Kind)
		}
		return Body{Kind: e.Kind, Message: msg, Fields: e.Fields}
	}
	return Body{Kind: KindStoreUnavailable, Message: "internal error, retry later"}
}
