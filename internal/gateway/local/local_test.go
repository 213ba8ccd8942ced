package local

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/db"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/util"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testEnv struct {
	db      *gorm.DB
	gw      *gateway.Gateway
	backend *Backend
}

func setup(t *testing.T, opts Options) *testEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	opts.JWTSecret = testSecret
	backend := New(testDB, nil, opts)
	return &testEnv{db: testDB, gw: backend.Gateway(), backend: backend}
}

func (e *testEnv) registerAndLogin(t *testing.T, email string) context.Context {
	_, err := e.gw.Auth.Register(context.Background(), gateway.RegisterRequest{
		Email:       email,
		Password:    "secret123",
		DisplayName: "Shopper",
	})
	require.NoError(t, err)
	token, err := e.gw.Auth.Login(context.Background(), email, "secret123")
	require.NoError(t, err)
	return gateway.WithToken(context.Background(), token)
}

func (e *testEnv) adminContext(t *testing.T) context.Context {
	admin := &model.User{Email: "admin@example.com", PasswordHash: "x", FullName: "Admin", Role: model.RoleAdmin, IsActive: true, EmailConfirmed: true}
	require.NoError(t, e.db.Create(admin).Error)
	token, err := util.GenerateAccessToken(admin.ID, admin.Email, string(admin.Role), testSecret, time.Hour)
	require.NoError(t, err)
	return gateway.WithToken(context.Background(), token)
}

func (e *testEnv) seedProduct(t *testing.T, slug, price string, stock int, skus ...string) *model.Product {
	product := &model.Product{
		Title:       "Product " + slug,
		Slug:        slug,
		BasePrice:   decimal.RequireFromString(price),
		IsPublished: true,
	}
	for _, sku := range skus {
		product.Variants = append(product.Variants, model.ProductVariant{SKU: sku, Size: "M", StockQuantity: stock})
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func testAddress() model.ShippingAddress {
	return model.ShippingAddress{
		FullName:     "Shopper",
		AddressLine1: "1 Main St",
		City:         "Springfield",
		ZipCode:      "12345",
		Country:      "USA",
	}
}

func TestAuth_RegisterLoginCurrentUser(t *testing.T) {
	env := setup(t, Options{})
	ctx := context.Background()

	result, err := env.gw.Auth.Register(ctx, gateway.RegisterRequest{
		Email:       "New@Example.com",
		Password:    "secret123",
		DisplayName: "New Shopper",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", result.Profile.Email)
	assert.NotEmpty(t, result.Token)

	token, err := env.gw.Auth.Login(ctx, "new@example.com", "secret123")
	require.NoError(t, err)

	profile, err := env.gw.Auth.CurrentUser(gateway.WithToken(ctx, token))
	require.NoError(t, err)
	assert.Equal(t, "New Shopper", profile.DisplayName)
	assert.Equal(t, model.RoleUser, profile.Role)
}

func TestAuth_RegisterFailures(t *testing.T) {
	env := setup(t, Options{})
	ctx := context.Background()

	_, err := env.gw.Auth.Register(ctx, gateway.RegisterRequest{Email: "a@example.com", Password: "short", DisplayName: "A"})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.AuthWeakPassword, e.Code)

	_, err = env.gw.Auth.Register(ctx, gateway.RegisterRequest{Email: "a@example.com", Password: "secret123", DisplayName: "A"})
	require.NoError(t, err)
	_, err = env.gw.Auth.Register(ctx, gateway.RegisterRequest{Email: "a@example.com", Password: "secret123", DisplayName: "A"})
	require.Error(t, err)
	e, _ = apperrors.As(err)
	assert.Equal(t, apperrors.KindConflict, e.Kind)
	assert.Equal(t, apperrors.AuthEmailAlreadyExists, e.Code)
}

func TestAuth_RegisterRequiringConfirmation(t *testing.T) {
	env := setup(t, Options{RequireEmailConfirmation: true})
	ctx := context.Background()

	result, err := env.gw.Auth.Register(ctx, gateway.RegisterRequest{Email: "c@example.com", Password: "secret123", DisplayName: "C"})
	require.NoError(t, err)
	assert.Empty(t, result.Token)

	_, err = env.gw.Auth.Login(ctx, "c@example.com", "secret123")
	require.Error(t, err)
	e, _ := apperrors.As(err)
	assert.Equal(t, apperrors.AuthEmailNotConfirmed, e.Code)
}

func TestAuth_LoginInvalidCredentials(t *testing.T) {
	env := setup(t, Options{})
	env.registerAndLogin(t, "shopper@example.com")

	_, err := env.gw.Auth.Login(context.Background(), "shopper@example.com", "wrong-pass1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	_, err = env.gw.Auth.Login(context.Background(), "nobody@example.com", "secret123")
	e, _ := apperrors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperrors.AuthInvalidCredentials, e.Code)
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")

	require.NoError(t, env.gw.Auth.Logout(ctx))

	_, err := env.gw.Auth.CurrentUser(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsExpiredSession(err))
}

func TestAuth_ExpiredToken(t *testing.T) {
	env := setup(t, Options{})
	token, err := util.GenerateAccessToken("u1", "x@example.com", "USER", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = env.gw.Cart.Get(gateway.WithToken(context.Background(), token))
	require.Error(t, err)
	assert.True(t, apperrors.IsExpiredSession(err))

	_, err = env.gw.Cart.Get(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.KindNotAuthenticated))
}

func TestCatalog_ListAndGet(t *testing.T) {
	env := setup(t, Options{})
	env.seedProduct(t, "tee", "10", 5, "TEE-M")
	env.seedProduct(t, "mug", "5", 5, "MUG")

	page, err := env.gw.Catalog.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)

	product, err := env.gw.Catalog.GetBySlug(context.Background(), "tee")
	require.NoError(t, err)
	assert.Len(t, product.Variants, 1)

	_, err = env.gw.Catalog.GetBySlug(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = env.gw.Catalog.List(context.Background(), -1, 10)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestCatalog_AdminWrites(t *testing.T) {
	env := setup(t, Options{})
	adminCtx := env.adminContext(t)
	userCtx := env.registerAndLogin(t, "shopper@example.com")

	draft := &model.Product{
		Title:       "Linen Shirt",
		BasePrice:   decimal.RequireFromString("49.90"),
		IsPublished: true,
		Variants:    []model.ProductVariant{{SKU: "LS-M", Size: "M", StockQuantity: 4}},
	}

	_, err := env.gw.Catalog.Create(userCtx, draft)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	created, err := env.gw.Catalog.Create(adminCtx, draft)
	require.NoError(t, err)
	assert.Equal(t, "linen-shirt", created.Slug)

	created.Title = "Linen Shirt II"
	updated, err := env.gw.Catalog.Update(adminCtx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt II", updated.Title)

	require.NoError(t, env.gw.Catalog.Delete(adminCtx, created.ID))
	err = env.gw.Catalog.Delete(adminCtx, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = env.gw.Catalog.Create(adminCtx, &model.Product{Title: " "})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestCart_AddItemIncrementsAndReconciles(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")
	tee := env.seedProduct(t, "tee", "10", 10, "TEE-M")
	mug := env.seedProduct(t, "mug", "5", 10, "MUG")

	cart, err := env.gw.Cart.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = env.gw.Cart.AddItem(ctx, tee.ID, "TEE-M", 1)
	require.NoError(t, err)
	_, err = env.gw.Cart.AddItem(ctx, tee.ID, "TEE-M", 2)
	require.NoError(t, err)
	cart, err = env.gw.Cart.AddItem(ctx, mug.ID, "MUG", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	line, ok := cart.Find(tee.ID, "TEE-M")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "35", cart.TotalPrice.String())

	cart, err = env.gw.Cart.RemoveItem(ctx, mug.ID, "MUG")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	cart, err = env.gw.Cart.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_AddItemRejections(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")
	tee := env.seedProduct(t, "tee", "10", 2, "TEE-M")

	_, err := env.gw.Cart.AddItem(ctx, tee.ID, "TEE-M", 0)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = env.gw.Cart.AddItem(ctx, tee.ID, "TEE-XL", 1)
	e, _ := apperrors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperrors.ProductVariantNotFound, e.Code)

	_, err = env.gw.Cart.AddItem(ctx, "missing", "TEE-M", 1)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = env.gw.Cart.AddItem(ctx, tee.ID, "TEE-M", 3)
	e, _ = apperrors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperrors.CartInsufficientStock, e.Code)

	_, err = env.gw.Cart.AddItem(context.Background(), tee.ID, "TEE-M", 1)
	assert.True(t, apperrors.Is(err, apperrors.KindNotAuthenticated))
}

func TestOrders_CreateIdempotentOnPaymentReference(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")

	draft := model.OrderDraft{
		ShippingAddress: testAddress(),
		Items: []model.OrderLineItem{
			{ProductID: "p1", VariantSKU: "S1", Title: "Tee", UnitPrice: decimal.RequireFromString("50"), Quantity: 2},
		},
		TotalAmount:      decimal.RequireFromString("110"),
		Currency:         "usd",
		Status:           model.OrderStatusPaid,
		PaymentReference: "pay_1",
	}

	first, err := env.gw.Orders.Create(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, model.OrderStatusPaid, first.Status)

	second, err := env.gw.Orders.Create(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	orders, err := env.gw.Orders.ListMine(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrders_CreateValidation(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")

	_, err := env.gw.Orders.Create(ctx, model.OrderDraft{ShippingAddress: testAddress(), Currency: "USD"})
	e, _ := apperrors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperrors.OrderInvalidItems, e.Code)

	addr := testAddress()
	addr.ZipCode = ""
	_, err = env.gw.Orders.Create(ctx, model.OrderDraft{
		ShippingAddress: addr,
		Items:           []model.OrderLineItem{{ProductID: "p", VariantSKU: "s", Quantity: 1}},
		Currency:        "USD",
	})
	e, _ = apperrors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperrors.CheckoutAddressIncomplete, e.Code)
	assert.Contains(t, e.Fields, "zip_code")
}

func TestOrders_ListMineNewestFirst(t *testing.T) {
	env := setup(t, Options{})
	ctx := env.registerAndLogin(t, "shopper@example.com")

	var ids []string
	for i := 0; i < 3; i++ {
		order, err := env.gw.Orders.Create(ctx, model.OrderDraft{
			ShippingAddress: testAddress(),
			Items:           []model.OrderLineItem{{ProductID: "p", VariantSKU: "s", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
			TotalAmount:     decimal.NewFromInt(1),
			Currency:        "USD",
		})
		require.NoError(t, err)
		// distinct timestamps
		require.NoError(t, env.db.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("created_at", time.Now().Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, order.ID)
	}

	orders, err := env.gw.Orders.ListMine(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[0], orders[2].ID)
}

func TestMemoryRevoker(t *testing.T) {
	r := NewMemoryRevoker()
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", time.Minute))
	require.NoError(t, r.Revoke(ctx, "b", 0))

	revoked, _ := r.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = r.IsRevoked(ctx, "b")
	assert.False(t, revoked)
}
