package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/service"
	"github.com/ikkim/storefront/internal/db"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/gateway/local"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/reconciliation"
	"github.com/ikkim/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "secret123"

type testApp struct {
	db       *gorm.DB
	gw       *gateway.Gateway
	session  service.SessionService
	cart     service.CartService
	checkout service.CheckoutService
	ledger   *reconciliation.Ledger
	images   *fakeImages
	router   *gin.Engine
}

// setupControllerTest wires every controller against the embedded backend
// on in-memory SQLite and mounts them on a bare gin engine.
func setupControllerTest(t *testing.T) *testApp {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	app := &testApp{db: testDB, images: &fakeImages{}}
	backend := local.New(testDB, gateway.CredentialFunc(func() string {
		return app.session.BearerToken()
	}), local.Options{JWTSecret: "test-secret"})
	app.gw = backend.Gateway()
	app.session = service.NewSessionService(app.gw.Auth, &service.MemoryStore{}, nil)
	_, err = app.session.Restore(context.Background())
	require.NoError(t, err)
	app.cart = service.NewCartService(app.gw.Cart, app.session, nil)
	app.ledger = reconciliation.NewLedger(testDB)
	app.checkout = service.NewCheckoutService(service.CheckoutConfig{
		TaxRate:  decimal.RequireFromString("0.10"),
		Currency: "USD",
	}, app.session, app.cart, app.gw.Orders, &fakeWidget{}, nil, app.ledger, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	authMW := middleware.NewAuthMiddleware(app.session)
	guard := middleware.NewInFlightGuard()

	authCtrl := NewAuthController(app.session)
	productCtrl := NewProductController(app.gw.Catalog, app.session)
	cartCtrl := NewCartController(app.cart)
	checkoutCtrl := NewCheckoutController(app.checkout)
	orderCtrl := NewOrderController(app.gw.Orders, app.session)
	adminCtrl := NewAdminController(app.gw.Catalog, app.session, app.images, app.ledger)

	router.GET("/session", authCtrl.GetSession)
	router.POST("/auth/register", authCtrl.Register)
	router.POST("/auth/login", authCtrl.Login)
	router.POST("/auth/logout", authCtrl.Logout)
	router.GET("/auth/me", authMW.Authenticate(), authCtrl.GetMe)

	router.GET("/products", productCtrl.ListProducts)
	router.GET("/products/:slug", productCtrl.GetProduct)

	protected := router.Group("", authMW.RequireReady(), authMW.Authenticate())
	protected.GET("/cart", cartCtrl.GetCart)
	protected.POST("/cart/items", guard.Guard("cart"), cartCtrl.AddToCart)
	protected.DELETE("/cart/items/:productId/:sku", guard.Guard("cart"), cartCtrl.RemoveFromCart)
	protected.GET("/checkout", checkoutCtrl.GetState)
	protected.POST("/checkout/start", checkoutCtrl.Start)
	protected.POST("/checkout/address", checkoutCtrl.SubmitAddress)
	protected.POST("/checkout/back", checkoutCtrl.EditAddress)
	protected.POST("/checkout/payment", checkoutCtrl.BeginPayment)
	router.POST("/checkout/payment/success", authMW.RequireReady(), checkoutCtrl.PaymentSuccess)
	protected.POST("/checkout/payment/dismiss", checkoutCtrl.PaymentDismiss)
	protected.POST("/checkout/retry-order", checkoutCtrl.RetryOrder)
	protected.GET("/orders", orderCtrl.GetOrders)

	admin := protected.Group("/admin", authMW.RequireAdmin())
	admin.POST("/products", adminCtrl.CreateProduct)
	admin.PUT("/products/:id", adminCtrl.UpdateProduct)
	admin.DELETE("/products/:id", adminCtrl.DeleteProduct)
	admin.POST("/uploads", adminCtrl.UploadImage)
	admin.GET("/reconciliation", adminCtrl.ListReconciliation)
	admin.GET("/reconciliation/report", adminCtrl.DownloadReconciliationReport)

	app.router = router
	return app
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) signUp(t *testing.T, email string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/auth/register", gin.H{
		"email": email, "password": testPassword, "full_name": "Test Shopper",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// signUpAdmin promotes a fresh account and signs in again so the token
// carries the ADMIN role.
func (a *testApp) signUpAdmin(t *testing.T, email string) {
	t.Helper()
	a.signUp(t, email)
	require.NoError(t, a.db.Model(&model.User{}).Where("email = ?", email).Update("role", model.RoleAdmin).Error)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/auth/logout", nil).Code)
	w := a.do(t, http.MethodPost, "/auth/login", gin.H{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (a *testApp) seedProduct(t *testing.T, slug, price, sku string) *model.Product {
	t.Helper()
	product := &model.Product{
		Title:       "Product " + slug,
		Slug:        slug,
		BasePrice:   decimal.RequireFromString(price),
		IsPublished: true,
		Images:      []string{},
		Variants:    []model.ProductVariant{{SKU: sku, Size: "M", Color: "Black", StockQuantity: 20}},
	}
	require.NoError(t, a.db.Create(product).Error)
	return product
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// ==================== fakes ====================

type fakeWidget struct{}

func (fakeWidget) Open(_ context.Context, req service.PaymentRequest) (*service.PaymentSession, error) {
	return &service.PaymentSession{
		AttemptID:       req.AttemptID,
		ProviderOrderID: "order_test",
		Amount:          req.Amount,
		Currency:        req.Currency,
	}, nil
}

func (fakeWidget) Verify(_ context.Context, _ service.PaymentSession, cb service.PaymentCallback) (string, error) {
	return cb.PaymentID, nil
}

type fakeImages struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeImages) Upload(_ context.Context, folder, filename, contentType string, body io.Reader, size int64) (*storage.UploadResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	key := folder + "/" + filename
	return &storage.UploadResult{URL: "https://cdn.example.com/" + key, Key: key, Size: int64(len(data))}, nil
}

func (f *fakeImages) GeneratePresignedURLWithFolder(_ context.Context, filename, _, folder string) (*storage.PresignedURLResponse, error) {
	key := folder + "/" + filename
	return &storage.PresignedURLResponse{UploadURL: "https://upload.example.com/" + key, FileURL: "https://cdn.example.com/" + key, Key: key}, nil
}
