package payment

import (
	"context"

	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
)

// Unavailable stands in when no provider keys are configured. Checkout
// still works up to review; paying reports PAYMENT_UNAVAILABLE.
type Unavailable struct{}

func (Unavailable) Open(context.Context, service.PaymentRequest) (*service.PaymentSession, error) {
	return nil, apperrors.NewPaymentError(apperrors.PaymentUnavailable,
		"payment is not available in this environment", "", nil)
}

func (Unavailable) Verify(_ context.Context, _ service.PaymentSession, cb service.PaymentCallback) (string, error) {
	return "", apperrors.NewPaymentError(apperrors.PaymentSignatureInvalid,
		"we could not confirm this payment", cb.PaymentID, nil)
}
