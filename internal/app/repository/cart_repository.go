package repository

import (
	"context"
	"errors"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	// FindOrCreateByUser returns the user's cart with hydrated items,
	// creating an empty one on first access.
	FindOrCreateByUser(ctx context.Context, userID string) (*model.Cart, error)
	// AddItem inserts a line or increments the existing one in a single
	// statement, so concurrent adds never produce two lines for a variant.
	AddItem(ctx context.Context, cartID, productID, variantSKU string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID, variantSKU string) error
	Clear(ctx context.Context, cartID string) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindOrCreateByUser(ctx context.Context, userID string) (*model.Cart, error) {
	logger.Debug("Finding cart by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := r.findByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = &model.Cart{UserID: userID}
		createErr := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Create(cart).Error
		if createErr != nil {
			logger.Error("Failed to create cart in database", createErr, map[string]interface{}{
				"user_id": userID,
			})
			return nil, createErr
		}
		logger.Info("Created empty cart for user", map[string]interface{}{
			"user_id": userID,
		})
		// re-read: a concurrent request may have won the insert
		cart, err = r.findByUser(ctx, userID)
	}
	if err != nil {
		logger.Error("Failed to find cart by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	for i := range cart.Items {
		cart.Items[i].Hydrate()
	}
	cart.Recalculate()

	logger.Debug("Cart loaded from database", map[string]interface{}{
		"cart_id": cart.ID,
		"lines":   len(cart.Items),
	})
	return cart, nil
}

func (r *cartRepository) findByUser(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("added_at ASC, id ASC")
		}).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Preload("Items.Product.Variants").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) AddItem(ctx context.Context, cartID, productID, variantSKU string, quantity int) error {
	logger.Debug("Upserting cart item in database", map[string]interface{}{
		"cart_id":     cartID,
		"product_id":  productID,
		"variant_sku": variantSKU,
		"quantity":    quantity,
	})

	item := &model.CartItem{
		CartID:     cartID,
		ProductID:  productID,
		VariantSKU: variantSKU,
		Quantity:   quantity,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}, {Name: "variant_sku"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
		}),
	}).Omit("Product").Create(item).Error
	if err != nil {
		logger.Error("Failed to upsert cart item in database", err, map[string]interface{}{
			"cart_id":     cartID,
			"product_id":  productID,
			"variant_sku": variantSKU,
		})
		return err
	}

	return r.touch(ctx, cartID)
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, productID, variantSKU string) error {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_id":     cartID,
		"product_id":  productID,
		"variant_sku": variantSKU,
	})

	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND variant_sku = ?", cartID, productID, variantSKU).
		Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"cart_id":     cartID,
			"product_id":  productID,
			"variant_sku": variantSKU,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}
	return r.touch(ctx, cartID)
}

func (r *cartRepository) Clear(ctx context.Context, cartID string) error {
	logger.Debug("Clearing cart items in database", map[string]interface{}{
		"cart_id": cartID,
	})

	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to clear cart items in database", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *cartRepository) touch(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
