package razorpay

import "errors"

var (
	// ErrInvalidRequest is returned when the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrPaymentFailed is returned when the provider rejects the operation
	ErrPaymentFailed = errors.New("payment failed")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")

	// ErrUnauthorized is returned when the key pair is invalid
	ErrUnauthorized = errors.New("unauthorized: invalid API key")

	// ErrInvalidSignature is returned when a callback signature does not match
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrServerError is returned for 5xx responses
	ErrServerError = errors.New("payment provider unavailable")
)
