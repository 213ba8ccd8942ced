package repository

import (
	"context"
	"testing"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
		Role:         model.RoleUser,
	}
	require.NoError(t, NewUserRepository(testDB).Create(context.Background(), user))
	return user
}

func createTestProduct(t *testing.T, testDB *gorm.DB, slug, price string, skus ...string) *model.Product {
	product := &model.Product{
		Title:       "Product " + slug,
		Slug:        slug,
		BasePrice:   decimal.RequireFromString(price),
		IsPublished: true,
		Images:      []string{"https://cdn.example.com/" + slug + ".png"},
	}
	for _, sku := range skus {
		product.Variants = append(product.Variants, model.ProductVariant{
			SKU:           sku,
			Size:          "M",
			Color:         "Black",
			StockQuantity: 10,
		})
	}
	require.NoError(t, NewProductRepository(testDB).Create(context.Background(), product))
	return product
}
