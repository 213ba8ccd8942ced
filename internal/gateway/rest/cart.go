package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
)

type cartAPI struct {
	c *Client
}

func (a *cartAPI) requireToken(ctx context.Context) error {
	if tokenFor(ctx, a.c) == "" {
		return apperrors.NewNotAuthenticatedError("")
	}
	return nil
}

func (a *cartAPI) Get(ctx context.Context) (*model.Cart, error) {
	if err := a.requireToken(ctx); err != nil {
		return nil, err
	}
	var cart model.Cart
	if _, err := a.c.do(ctx, http.MethodGet, "/cart/", nil, nil, &cart); err != nil {
		return nil, err
	}
	cart.Recalculate()
	return &cart, nil
}

func (a *cartAPI) AddItem(ctx context.Context, productID, variantSKU string, quantity int) (*model.Cart, error) {
	if err := a.requireToken(ctx); err != nil {
		return nil, err
	}
	req := addItemRequest{ProductID: productID, VariantSKU: variantSKU, Quantity: quantity}
	if _, err := a.c.do(ctx, http.MethodPost, "/cart/items", nil, req, nil); err != nil {
		return nil, err
	}
	// the response shape varies between deployments; the follow-up read is authoritative
	return a.Get(ctx)
}

func (a *cartAPI) RemoveItem(ctx context.Context, productID, variantSKU string) (*model.Cart, error) {
	if err := a.requireToken(ctx); err != nil {
		return nil, err
	}
	path := "/cart/items/" + url.PathEscape(productID) + "/" + url.PathEscape(variantSKU)
	if _, err := a.c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			return nil, err
		}
		// removing an absent line is a no-op
	}
	return a.Get(ctx)
}

func (a *cartAPI) Clear(ctx context.Context) (*model.Cart, error) {
	if err := a.requireToken(ctx); err != nil {
		return nil, err
	}
	if _, err := a.c.do(ctx, http.MethodDelete, "/cart/", nil, nil, nil); err != nil {
		return nil, err
	}
	return a.Get(ctx)
}
