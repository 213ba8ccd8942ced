// Package payment adapts the hosted payment provider to the checkout flow.
package payment

import (
	"context"
	"errors"

	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/payment/razorpay"
)

type WidgetOptions struct {
	MerchantName string
	Description  string
	ThemeColor   string
	// ConfirmWithAPI looks the payment up after the signature check and
	// refuses payments that are not settled for the expected order.
	ConfirmWithAPI bool
}

// RazorpayWidget opens Razorpay Checkout against a provider order and
// authenticates its success callback.
type RazorpayWidget struct {
	client *razorpay.Client
	opts   WidgetOptions
}

func NewRazorpayWidget(client *razorpay.Client, opts WidgetOptions) *RazorpayWidget {
	return &RazorpayWidget{client: client, opts: opts}
}

func (w *RazorpayWidget) Open(ctx context.Context, req service.PaymentRequest) (*service.PaymentSession, error) {
	description := req.Description
	if description == "" {
		description = w.opts.Description
	}

	order, err := w.client.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    map[string]string{"attempt_id": req.AttemptID},
	})
	if err != nil {
		return nil, providerError(err, "")
	}

	logger.Info("Razorpay order created", map[string]interface{}{
		"attempt_id": req.AttemptID,
		"order_id":   order.ID,
		"amount":     order.Amount,
	})

	return &service.PaymentSession{
		AttemptID:       req.AttemptID,
		ProviderOrderID: order.ID,
		Amount:          order.Amount,
		Currency:        order.Currency,
		Options: map[string]interface{}{
			"key":         w.client.KeyID(),
			"amount":      order.Amount,
			"currency":    order.Currency,
			"name":        w.opts.MerchantName,
			"description": description,
			"order_id":    order.ID,
			"prefill": map[string]string{
				"name":    req.Prefill.Name,
				"email":   req.Prefill.Email,
				"contact": req.Prefill.Contact,
			},
			"notes": map[string]string{"attempt_id": req.AttemptID},
			"theme": map[string]string{"color": w.opts.ThemeColor},
		},
	}, nil
}

// Verify returns the payment id as the payment reference once the callback
// is proven to come from the provider for this attempt's order.
func (w *RazorpayWidget) Verify(ctx context.Context, session service.PaymentSession, cb service.PaymentCallback) (string, error) {
	if cb.ProviderOrderID != "" && cb.ProviderOrderID != session.ProviderOrderID {
		return "", apperrors.NewPaymentError(apperrors.PaymentSignatureInvalid,
			"this payment does not belong to your order", cb.PaymentID, nil)
	}
	if err := w.client.VerifySignature(session.ProviderOrderID, cb.PaymentID, cb.Signature); err != nil {
		return "", apperrors.NewPaymentError(apperrors.PaymentSignatureInvalid,
			"we could not confirm this payment", cb.PaymentID, err)
	}

	if w.opts.ConfirmWithAPI {
		payment, err := w.client.FetchPayment(ctx, cb.PaymentID)
		if err != nil {
			// the signature already proves the capture
			logger.Warn("Could not confirm payment with provider, trusting signature", map[string]interface{}{
				"payment_id": cb.PaymentID,
				"error":      err.Error(),
			})
			return cb.PaymentID, nil
		}
		if payment.OrderID != session.ProviderOrderID || payment.Amount != session.Amount || !payment.Settled() {
			logger.Warn("Provider payment does not match the attempt", map[string]interface{}{
				"payment_id": cb.PaymentID,
				"order_id":   payment.OrderID,
				"status":     payment.Status,
				"amount":     payment.Amount,
			})
			return "", apperrors.NewPaymentError(apperrors.PaymentFailed,
				"the payment was not completed", cb.PaymentID, nil)
		}
	}
	return cb.PaymentID, nil
}

func providerError(err error, paymentRef string) *apperrors.Error {
	switch {
	case errors.Is(err, razorpay.ErrNetworkError), errors.Is(err, razorpay.ErrServerError):
		return apperrors.NewPaymentError(apperrors.PaymentUnavailable,
			"payment is unavailable right now, please try again", paymentRef, err)
	case errors.Is(err, razorpay.ErrUnauthorized):
		logger.Error("Razorpay rejected the configured keys", err)
		return apperrors.NewPaymentError(apperrors.PaymentUnavailable,
			"payment is unavailable right now, please try again", paymentRef, err)
	default:
		return apperrors.NewPaymentError(apperrors.PaymentFailed, "the payment could not be started", paymentRef, err)
	}
}
