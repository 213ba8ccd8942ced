package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID string, ref *string) *model.Order {
	return &model.Order{
		UserID:      userID,
		TotalAmount: decimal.RequireFromString("22.00"),
		Currency:    "USD",
		Status:      model.OrderStatusPaid,
		ShippingAddress: model.ShippingAddress{
			FullName:     "Test User",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			ZipCode:      "12345",
			Country:      "USA",
		},
		PaymentReference: ref,
		Items: []model.OrderLineItem{
			{ProductID: "p1", VariantSKU: "S1", Title: "Tee", UnitPrice: decimal.RequireFromString("10"), Quantity: 2},
		},
	}
}

func TestOrderRepository_Create(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createTestUser(t, testDB, "orders@example.com")
	ctx := context.Background()

	ref := "pay_123"
	order := newTestOrder(user.ID, &ref)
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)

	found, err := repo.FindByPaymentReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Tee", found.Items[0].Title)
	assert.Equal(t, "1 Main St", found.ShippingAddress.AddressLine1)
	assert.True(t, decimal.RequireFromString("22").Equal(found.TotalAmount))
}

func TestOrderRepository_Create_DuplicatePaymentReference(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createTestUser(t, testDB, "orders@example.com")
	ctx := context.Background()

	ref := "pay_dup"
	require.NoError(t, repo.Create(ctx, newTestOrder(user.ID, &ref)))
	assert.Error(t, repo.Create(ctx, newTestOrder(user.ID, &ref)))

	// orders without a reference do not collide
	require.NoError(t, repo.Create(ctx, newTestOrder(user.ID, nil)))
	require.NoError(t, repo.Create(ctx, newTestOrder(user.ID, nil)))
}

func TestOrderRepository_ListByUser_NewestFirst(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewOrderRepository(testDB)
	user := createTestUser(t, testDB, "orders@example.com")
	other := createTestUser(t, testDB, "other@example.com")
	ctx := context.Background()

	older := newTestOrder(user.ID, nil)
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))

	newer := newTestOrder(user.ID, nil)
	require.NoError(t, repo.Create(ctx, newer))

	require.NoError(t, repo.Create(ctx, newTestOrder(other.ID, nil)))

	orders, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)
}
