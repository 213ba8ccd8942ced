package repository

import (
	"context"
	"testing"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestProductRepository_FindBySlug(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewProductRepository(testDB)
	created := createTestProduct(t, testDB, "linen-shirt", "49.90", "LS-M", "LS-L")

	product, err := repo.FindBySlug(context.Background(), "linen-shirt")
	require.NoError(t, err)
	assert.Equal(t, created.ID, product.ID)
	assert.Len(t, product.Variants, 2)
	assert.Equal(t, []string{"https://cdn.example.com/linen-shirt.png"}, product.Images)

	_, err = repo.FindBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductRepository_List_Pagination(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewProductRepository(testDB)
	for _, slug := range []string{"a", "b", "c"} {
		createTestProduct(t, testDB, slug, "1", slug+"-sku")
	}
	hidden := createTestProduct(t, testDB, "hidden", "1", "hidden-sku")
	require.NoError(t, testDB.Model(&model.Product{}).Where("id = ?", hidden.ID).Update("is_published", false).Error)

	products, total, err := repo.List(context.Background(), ProductFilter{Offset: 0, Limit: 2, PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 2)

	products, total, err = repo.List(context.Background(), ProductFilter{Offset: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, products, 2)
}

func TestProductRepository_Update_ReplacesVariants(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewProductRepository(testDB)
	product := createTestProduct(t, testDB, "tee", "10", "TEE-M", "TEE-L")
	ctx := context.Background()

	product.Title = "Organic Tee"
	product.IsPublished = false
	product.Variants = []model.ProductVariant{{SKU: "TEE-XL", Size: "XL", StockQuantity: 3}}
	require.NoError(t, repo.Update(ctx, product))

	updated, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Organic Tee", updated.Title)
	assert.False(t, updated.IsPublished)
	require.Len(t, updated.Variants, 1)
	assert.Equal(t, "TEE-XL", updated.Variants[0].SKU)

	missing := &model.Product{ID: "nope", Title: "x", Slug: "x"}
	assert.ErrorIs(t, repo.Update(ctx, missing), gorm.ErrRecordNotFound)
}

func TestProductRepository_Delete(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewProductRepository(testDB)
	product := createTestProduct(t, testDB, "tee", "10", "TEE-M")
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, product.ID))
	_, err := repo.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, product.ID), gorm.ErrRecordNotFound)
}
