package service

import (
	"context"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/shopspring/decimal"
)

// CheckoutState is a state of the checkout flow.
type CheckoutState string

const (
	StateCollectingAddress    CheckoutState = "COLLECTING_ADDRESS"
	StateReview               CheckoutState = "REVIEW"
	StatePaymentInProgress    CheckoutState = "PAYMENT_IN_PROGRESS"
	StateOrderConfirmed       CheckoutState = "ORDER_CONFIRMED"
	StatePaymentFailed        CheckoutState = "PAYMENT_FAILED"
	StateReconciliationFailed CheckoutState = "ORDER_RECONCILIATION_FAILED"
)

// allowedTransitions is the checkout state machine.
var allowedTransitions = map[CheckoutState][]CheckoutState{
	StateCollectingAddress:    {StateReview},
	StateReview:               {StateCollectingAddress, StatePaymentInProgress},
	StatePaymentInProgress:    {StateReview, StatePaymentFailed, StateOrderConfirmed, StateReconciliationFailed},
	StatePaymentFailed:        {StateReview, StateCollectingAddress, StatePaymentInProgress},
	StateReconciliationFailed: {StateOrderConfirmed},
}

func canTransition(from, to CheckoutState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentPrefill is shown pre-entered in the payment widget.
type PaymentPrefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// PaymentRequest opens one payment attempt. Amount is in minor units.
type PaymentRequest struct {
	AttemptID   string
	Amount      int64
	Currency    string
	Description string
	Receipt     string
	Prefill     PaymentPrefill
}

// PaymentSession is what the UI needs to open the widget for an attempt.
type PaymentSession struct {
	AttemptID       string                 `json:"attempt_id"`
	ProviderOrderID string                 `json:"provider_order_id"`
	Amount          int64                  `json:"amount"`
	Currency        string                 `json:"currency"`
	Options         map[string]interface{} `json:"options,omitempty"`
}

// PaymentCallback is the widget's success callback.
type PaymentCallback struct {
	AttemptID       string `json:"attempt_id"`
	ProviderOrderID string `json:"provider_order_id"`
	PaymentID       string `json:"payment_id"`
	Signature       string `json:"signature"`
}

// PaymentWidget is the hosted payment widget.
type PaymentWidget interface {
	Open(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	// Verify authenticates a success callback and returns the payment reference.
	Verify(ctx context.Context, session PaymentSession, cb PaymentCallback) (string, error)
}

// Geocoder resolves a map position to an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*model.ShippingAddress, error)
}

// ReconciliationLedger keeps captured payments whose order was not recorded.
type ReconciliationLedger interface {
	Record(ctx context.Context, failure *model.ReconciliationFailure) error
	Resolve(ctx context.Context, paymentRef, orderID string) error
}

// CheckoutObserver is told about every state transition.
type CheckoutObserver interface {
	CheckoutTransition(userID string, from, to CheckoutState, snapshot CheckoutSnapshot)
}

type CheckoutObserverFunc func(userID string, from, to CheckoutState, snapshot CheckoutSnapshot)

func (f CheckoutObserverFunc) CheckoutTransition(userID string, from, to CheckoutState, snapshot CheckoutSnapshot) {
	f(userID, from, to, snapshot)
}

type CheckoutConfig struct {
	TaxRate        decimal.Decimal
	Currency       string
	DefaultCountry string
	Description    string
}

// Quote is the amount due for the cart.
type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
}

// NewQuote applies the flat tax rate. Tax is rounded to the currency's minor
// unit so the displayed total is exactly what gets charged.
func NewQuote(subtotal, taxRate decimal.Decimal, currency string) Quote {
	tax := subtotal.Mul(taxRate).Round(model.CurrencyExponent(currency))
	total := subtotal.Add(tax)
	return Quote{
		Subtotal:    subtotal,
		Tax:         tax,
		Total:       total,
		AmountMinor: model.ToMinorUnits(total, currency),
		Currency:    currency,
	}
}

// CheckoutError is the user-facing failure attached to a flow.
type CheckoutError struct {
	Kind             string            `json:"kind"`
	Code             string            `json:"code"`
	Message          string            `json:"message"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

func newCheckoutError(e *apperrors.Error) *CheckoutError {
	return &CheckoutError{
		Kind:             e.Kind.String(),
		Code:             e.Code,
		Message:          e.Message,
		PaymentReference: e.PaymentReference,
		Fields:           e.Fields,
	}
}

type MapLookupState struct {
	Open       bool   `json:"open"`
	Generation uint64 `json:"generation"`
	Pending    bool   `json:"pending"`
}

// CheckoutSnapshot is a read-only copy of the flow for the UI.
type CheckoutSnapshot struct {
	State         CheckoutState         `json:"state"`
	Address       model.ShippingAddress `json:"address"`
	Quote         *Quote                `json:"quote,omitempty"`
	Payment       *PaymentSession       `json:"payment,omitempty"`
	Order         *model.Order          `json:"order,omitempty"`
	Error         *CheckoutError        `json:"error,omitempty"`
	Warning       string                `json:"warning,omitempty"`
	MapLookup     MapLookupState        `json:"map_lookup"`
	InFlight      string                `json:"in_flight,omitempty"`
	CanPlaceOrder bool                  `json:"can_place_order"`
}
