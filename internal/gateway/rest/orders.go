package rest

import (
	"context"
	"net/http"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
)

type orderAPI struct {
	c *Client
}

func tokenFor(ctx context.Context, c *Client) string {
	return gateway.TokenFor(ctx, c.creds)
}

func (a *orderAPI) Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	if tokenFor(ctx, a.c) == "" {
		return nil, apperrors.NewNotAuthenticatedError("")
	}
	body, err := a.c.do(ctx, http.MethodPost, "/orders/", nil, draft, nil)
	if err != nil {
		return nil, err
	}
	w, err := decodeCreatedOrder(body)
	if err != nil {
		return nil, unexpected(err)
	}
	order := w.model()
	if order.PaymentReference == nil && draft.PaymentReference != "" {
		ref := draft.PaymentReference
		order.PaymentReference = &ref
	}
	return &order, nil
}

func (a *orderAPI) ListMine(ctx context.Context) ([]model.Order, error) {
	if tokenFor(ctx, a.c) == "" {
		return nil, apperrors.NewNotAuthenticatedError("")
	}
	var wire []wireOrder
	if _, err := a.c.do(ctx, http.MethodGet, "/orders/", nil, nil, &wire); err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(wire))
	for _, w := range wire {
		orders = append(orders, w.model())
	}
	sortNewestFirst(orders)
	return orders, nil
}
