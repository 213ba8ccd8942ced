package errors

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ParseError converts storage and driver errors into typed errors.
// Sensitive details stay in the wrapped cause; the message is safe to show.
func ParseError(err error, context string) *Error {
	if err == nil {
		return NewInternalError("", nil)
	}
	if e, ok := As(err); ok {
		return e
	}

	errLower := strings.ToLower(err.Error())

	// 1. gorm sentinel errors
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(KindNotFound, notFoundCode(context), notFoundMessage(context), err)
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return parseDuplicateKeyError(err, context)
	}

	// 2. driver errors (postgres 23505 / sqlite UNIQUE)
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return parseDuplicateKeyError(err, context)
	}
	if strings.Contains(errLower, "foreign key constraint") {
		return Wrap(KindValidation, ResourceNotFound, "a referenced record does not exist", err)
	}
	if strings.Contains(errLower, "not null constraint") || strings.Contains(errLower, "violates not-null") {
		return Wrap(KindValidation, ValidationRequired, "a required field is missing", err)
	}
	if strings.Contains(errLower, "check constraint") {
		return Wrap(KindValidation, ValidationInvalidInput, "a value is out of range", err)
	}

	// 3. network / connectivity
	if isNetworkError(err) {
		return NewTransientError("", err)
	}

	return Wrap(KindInternal, InternalDatabaseError, defaultMessage(context), err)
}

// FromValidation turns validator failures into a ValidationError with a
// message per offending field (keyed by JSON-ish field name).
func FromValidation(err error, code string) *Error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return Wrap(KindValidation, ValidationInvalidInput, "some fields are invalid", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		case "min", "gte", "gt":
			fields[name] = "is too small"
		case "max", "lte", "lt":
			fields[name] = "is too large"
		case "email":
			fields[name] = "must be a valid email"
		default:
			fields[name] = "is invalid"
		}
	}
	e := NewValidationError(code, "some fields are invalid", fields)
	e.Err = err
	return e
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout")
}

func parseDuplicateKeyError(err error, context string) *Error {
	errLower := strings.ToLower(err.Error())

	if strings.Contains(errLower, "email") || strings.Contains(context, "user") {
		return Wrap(KindConflict, AuthEmailAlreadyExists, "an account with this email already exists", err)
	}
	if strings.Contains(errLower, "slug") {
		return Wrap(KindConflict, ResourceAlreadyExists, "a product with this slug already exists", err)
	}
	if strings.Contains(errLower, "sku") {
		return Wrap(KindConflict, ResourceAlreadyExists, "a variant with this SKU already exists", err)
	}
	if strings.Contains(errLower, "payment_reference") {
		return Wrap(KindConflict, ResourceAlreadyExists, "an order for this payment already exists", err)
	}
	return Wrap(KindConflict, ResourceAlreadyExists, "this record already exists", err)
}

func notFoundCode(context string) string {
	if strings.Contains(strings.ToLower(context), "product") {
		return ProductNotFound
	}
	return ResourceNotFound
}

func notFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "product"):
		return "product not found"
	case strings.Contains(contextLower, "variant"):
		return "variant not found"
	case strings.Contains(contextLower, "user"):
		return "user not found"
	case strings.Contains(contextLower, "order"):
		return "order not found"
	case strings.Contains(contextLower, "cart"):
		return "cart not found"
	}
	return "the requested record was not found"
}

func defaultMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"):
		return "could not save, please try again later"
	case strings.Contains(contextLower, "update"):
		return "could not update, please try again later"
	case strings.Contains(contextLower, "delete"):
		return "could not delete, please try again later"
	}
	return "something went wrong, please try again later"
}
