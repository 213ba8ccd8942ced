package local

import (
	"context"
	"strings"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/repository"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type catalogAPI struct {
	b *Backend
}

// List returns published products, newest first. Browsing needs no session.
func (c *catalogAPI) List(ctx context.Context, offset, limit int) (*model.ProductPage, error) {
	if offset < 0 {
		return nil, apperrors.NewValidationError(apperrors.ValidationInvalidRange, "offset must not be negative", nil)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	products, total, err := c.b.products.List(ctx, repository.ProductFilter{
		Offset:        offset,
		Limit:         limit,
		PublishedOnly: true,
	})
	if err != nil {
		return nil, apperrors.ParseError(err, "list products")
	}
	if products == nil {
		products = []model.Product{}
	}
	return &model.ProductPage{Items: products, Total: total}, nil
}

func (c *catalogAPI) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	product, err := c.b.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, apperrors.ParseError(err, "find product")
	}
	if !product.IsPublished {
		return nil, apperrors.NewNotFoundError(apperrors.ProductNotFound, "product not found")
	}
	return product, nil
}

func (c *catalogAPI) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	claims, err := c.b.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	product.ID = ""
	if err := c.b.products.Create(ctx, product); err != nil {
		return nil, apperrors.ParseError(err, "create product")
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
		"admin_id":   claims.UserID,
	})
	created, err := c.b.products.FindByID(ctx, product.ID)
	if err != nil {
		return nil, apperrors.ParseError(err, "find product")
	}
	return created, nil
}

func (c *catalogAPI) Update(ctx context.Context, id string, product *model.Product) (*model.Product, error) {
	claims, err := c.b.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if product.Slug == "" {
		product.Slug = model.GenerateSlug(product.Title)
	}

	product.ID = id
	if err := c.b.products.Update(ctx, product); err != nil {
		return nil, apperrors.ParseError(err, "update product")
	}

	logger.Info("Product updated", map[string]interface{}{
		"product_id": id,
		"admin_id":   claims.UserID,
	})
	updated, err := c.b.products.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.ParseError(err, "find product")
	}
	return updated, nil
}

func (c *catalogAPI) Delete(ctx context.Context, id string) error {
	claims, err := c.b.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := c.b.products.Delete(ctx, id); err != nil {
		return apperrors.ParseError(err, "delete product")
	}

	logger.Info("Product deleted", map[string]interface{}{
		"product_id": id,
		"admin_id":   claims.UserID,
	})
	return nil
}

func validateProduct(p *model.Product) error {
	fields := map[string]string{}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		fields["title"] = "is required"
	}
	if p.BasePrice.IsNegative() {
		fields["base_price"] = "must not be negative"
	}
	seen := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if strings.TrimSpace(v.SKU) == "" {
			fields["product_variants"] = "every variant needs a sku"
			break
		}
		if seen[v.SKU] {
			fields["product_variants"] = "variant skus must be unique"
			break
		}
		if v.StockQuantity < 0 {
			fields["product_variants"] = "stock must not be negative"
			break
		}
		seen[v.SKU] = true
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(apperrors.ValidationInvalidInput, "some fields are invalid", fields)
	}
	return nil
}
