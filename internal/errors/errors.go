package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies failures so callers can pick user-facing handling
// without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindNotAuthenticated
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindPayment
	KindReconciliation
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPayment:
		return "payment"
	case KindReconciliation:
		return "reconciliation"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by every public operation of the
// session, cart and checkout services and by the gateways.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Fields holds per-field validation messages.
	Fields map[string]string
	// PaymentReference is set for payment and reconciliation failures.
	PaymentReference string
	// Expired marks an auth failure caused by an expired or revoked session.
	Expired bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// New builds an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// As extracts the *Error from a chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsExpiredSession reports whether err is an auth failure caused by an
// expired or revoked session.
func IsExpiredSession(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindAuth && e.Expired
}

func NewAuthError(code, message string) *Error {
	return New(KindAuth, code, message)
}

func NewExpiredSessionError(err error) *Error {
	e := Wrap(KindAuth, AuthTokenExpired, "your session has expired, please sign in again", err)
	e.Expired = true
	return e
}

func NewNotAuthenticatedError(message string) *Error {
	if message == "" {
		message = "sign in to continue"
	}
	return New(KindNotAuthenticated, AuthUnauthorized, message)
}

func NewValidationError(code, message string, fields map[string]string) *Error {
	e := New(KindValidation, code, message)
	e.Fields = fields
	return e
}

func NewPaymentError(code, message, paymentRef string, err error) *Error {
	e := Wrap(KindPayment, code, message, err)
	e.PaymentReference = paymentRef
	return e
}

// NewReconciliationError reports a captured payment whose order was not recorded.
func NewReconciliationError(paymentRef string, err error) *Error {
	e := Wrap(KindReconciliation, OrderReconciliationFailed,
		"your payment was received but we could not record your order; do not pay again, we will follow up", err)
	e.PaymentReference = paymentRef
	return e
}

func NewTransientError(message string, err error) *Error {
	if message == "" {
		message = "the service is unreachable, please try again"
	}
	return Wrap(KindTransient, NetworkUnavailable, message, err)
}

func NewNotFoundError(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func NewConflictError(code, message string) *Error {
	return New(KindConflict, code, message)
}

func NewForbiddenError(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func NewInternalError(message string, err error) *Error {
	if message == "" {
		message = "something went wrong, please try again later"
	}
	return Wrap(KindInternal, InternalServerError, message, err)
}
