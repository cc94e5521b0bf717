// Package apperr carries the reconciliation engine's error taxonomy. Local
// validation and authorization failures surface synchronously to the caller;
// gateway-side and matching failures are persisted and surfaced via
// notifications, because the caller of a callback is the gateway itself.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"     // bad input, never persisted
	KindUnauthorized  Kind = "unauthorized"   // caller lacks rights, never persisted
	KindNotConfigured Kind = "not_configured" // no usable gateway credentials
	KindGateway       Kind = "gateway_rejected"
	KindDuplicate     Kind = "duplicate_callback" // idempotency no-op, not a failure
	KindUnmatched     Kind = "unmatched_callback"
	KindThrottled     Kind = "throttled"
	KindTransient     Kind = "transient" // timeouts, decrypt failures; retryable
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Msg: msg} }

func NotConfigured(msg string) *Error { return &Error{Kind: KindNotConfigured, Msg: msg} }

// GatewayRejected keeps the provider's own description verbatim alongside the
// internal reference so support can triage from either side.
func GatewayRejected(description, reference string) *Error {
	return &Error{Kind: KindGateway, Msg: fmt.Sprintf("%s (ref %s)", description, reference)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps the taxonomy onto response codes for the initiation API.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotConfigured:
		return http.StatusUnprocessableEntity
	case KindGateway:
		return http.StatusBadGateway
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindDuplicate:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
