package local

import (
	"context"
	"errors"
	"strings"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
)

type orderAPI struct {
	b *Backend
}

// Create records an order for the caller. A payment reference makes the
// call idempotent: repeating it returns the order created the first time.
func (o *orderAPI) Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	claims, err := o.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	if draft.PaymentReference != "" {
		existing, err := o.existing(ctx, claims.UserID, draft.PaymentReference)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	order := &model.Order{
		UserID:          claims.UserID,
		Items:           draft.Items,
		TotalAmount:     draft.TotalAmount,
		Currency:        draft.Currency,
		Status:          draft.Status,
		ShippingAddress: draft.ShippingAddress,
	}
	for i := range order.Items {
		order.Items[i].ID = 0
		order.Items[i].OrderID = ""
	}
	if draft.PaymentReference != "" {
		ref := draft.PaymentReference
		order.PaymentReference = &ref
	}

	if err := o.b.orders.Create(ctx, order); err != nil {
		if draft.PaymentReference != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent create for the same payment
			return o.existing(ctx, claims.UserID, draft.PaymentReference)
		}
		return nil, apperrors.ParseError(err, "create order")
	}

	logger.Info("Order created", map[string]interface{}{
		"order_id":          order.ID,
		"user_id":           claims.UserID,
		"total_amount":      order.TotalAmount.String(),
		"currency":          order.Currency,
		"payment_reference": draft.PaymentReference,
	})
	return order, nil
}

func (o *orderAPI) existing(ctx context.Context, userID, ref string) (*model.Order, error) {
	order, err := o.b.orders.FindByPaymentReference(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ParseError(err, "find order")
	}
	if order.UserID != userID {
		return nil, apperrors.NewConflictError(apperrors.ResourceConflict, "this payment belongs to another order")
	}
	logger.Info("Order already recorded for payment", map[string]interface{}{
		"order_id":          order.ID,
		"payment_reference": ref,
	})
	return order, nil
}

func (o *orderAPI) ListMine(ctx context.Context) ([]model.Order, error) {
	claims, err := o.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := o.b.orders.ListByUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ParseError(err, "list orders")
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func validateDraft(draft *model.OrderDraft) error {
	draft.ShippingAddress = draft.ShippingAddress.Normalize()
	if err := draft.ShippingAddress.Validate(); err != nil {
		return apperrors.FromValidation(err, apperrors.CheckoutAddressIncomplete)
	}

	if len(draft.Items) == 0 {
		return apperrors.NewValidationError(apperrors.OrderInvalidItems, "an order needs at least one item", nil)
	}
	for _, item := range draft.Items {
		if item.ProductID == "" || item.VariantSKU == "" || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return apperrors.NewValidationError(apperrors.OrderInvalidItems, "an order item is invalid", nil)
		}
	}
	if draft.TotalAmount.IsNegative() {
		return apperrors.NewValidationError(apperrors.ValidationInvalidRange, "total must not be negative",
			map[string]string{"total_amount": "must not be negative"})
	}

	draft.Currency = strings.ToUpper(strings.TrimSpace(draft.Currency))
	if len(draft.Currency) != 3 {
		return apperrors.NewValidationError(apperrors.ValidationInvalidFormat, "currency must be an ISO 4217 code",
			map[string]string{"currency": "is invalid"})
	}
	if draft.Status == "" {
		draft.Status = model.OrderStatusPending
	}
	if !draft.Status.Valid() {
		return apperrors.NewValidationError(apperrors.ValidationInvalidInput, "unknown order status",
			map[string]string{"status": "is invalid"})
	}
	return nil
}
