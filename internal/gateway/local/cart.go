package local

import (
	"context"
	"errors"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
)

type cartAPI struct {
	b *Backend
}

func (c *cartAPI) Get(ctx context.Context) (*model.Cart, error) {
	claims, err := c.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := c.b.carts.FindOrCreateByUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find cart")
	}
	return cart, nil
}

// AddItem increments the line for (productID, variantSKU) or creates it.
func (c *cartAPI) AddItem(ctx context.Context, productID, variantSKU string, quantity int) (*model.Cart, error) {
	claims, err := c.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperrors.NewValidationError(apperrors.CartInvalidQuantity, "quantity must be at least 1",
			map[string]string{"quantity": "is too small"})
	}

	product, err := c.b.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ProductNotFound, "product not found")
		}
		return nil, apperrors.ParseError(err, "find product")
	}
	if !product.IsPublished {
		return nil, apperrors.NewNotFoundError(apperrors.ProductNotFound, "product not found")
	}
	variant, ok := product.Variant(variantSKU)
	if !ok {
		return nil, apperrors.NewNotFoundError(apperrors.ProductVariantNotFound, "this size or color is not available")
	}

	cart, err := c.b.carts.FindOrCreateByUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find cart")
	}
	inCart := 0
	if line, ok := cart.Find(productID, variantSKU); ok {
		inCart = line.Quantity
	}
	if inCart+quantity > variant.StockQuantity {
		logger.Warn("Add to cart refused: insufficient stock", map[string]interface{}{
			"user_id":     claims.UserID,
			"variant_sku": variantSKU,
			"stock":       variant.StockQuantity,
			"requested":   inCart + quantity,
		})
		return nil, apperrors.NewValidationError(apperrors.CartInsufficientStock, "not enough stock for this item",
			map[string]string{"quantity": "exceeds available stock"})
	}

	if err := c.b.carts.AddItem(ctx, cart.ID, productID, variantSKU, quantity); err != nil {
		return nil, apperrors.ParseError(err, "update cart")
	}

	logger.Info("Item added to cart", map[string]interface{}{
		"user_id":     claims.UserID,
		"product_id":  productID,
		"variant_sku": variantSKU,
		"quantity":    quantity,
	})
	return c.reload(ctx, claims.UserID)
}

func (c *cartAPI) RemoveItem(ctx context.Context, productID, variantSKU string) (*model.Cart, error) {
	claims, err := c.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := c.b.carts.FindOrCreateByUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find cart")
	}
	if err := c.b.carts.RemoveItem(ctx, cart.ID, productID, variantSKU); err != nil {
		return nil, apperrors.ParseError(err, "update cart")
	}
	return c.reload(ctx, claims.UserID)
}

func (c *cartAPI) Clear(ctx context.Context) (*model.Cart, error) {
	claims, err := c.b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := c.b.carts.FindOrCreateByUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find cart")
	}
	if err := c.b.carts.Clear(ctx, cart.ID); err != nil {
		return nil, apperrors.ParseError(err, "delete cart items")
	}

	logger.Info("Cart cleared", map[string]interface{}{
		"user_id": claims.UserID,
	})
	return c.reload(ctx, claims.UserID)
}

func (c *cartAPI) reload(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := c.b.carts.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find cart")
	}
	return cart, nil
}
