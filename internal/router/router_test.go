package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/app/service"
	"github.com/ikkim/storefront/internal/db"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/gateway/local"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/websocket"
	"github.com/ikkim/storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (http.Handler, service.SessionService) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	var session service.SessionService
	gw := local.New(testDB, gateway.CredentialFunc(func() string { return session.BearerToken() }),
		local.Options{JWTSecret: "test-secret"}).Gateway()
	session = service.NewSessionService(gw.Auth, &service.MemoryStore{}, nil)
	cart := service.NewCartService(gw.Cart, session, nil)
	checkout := service.NewCheckoutService(service.CheckoutConfig{Currency: "USD"}, session, cart, gw.Orders, nil, nil, nil, nil)

	reg := prometheus.NewRegistry()
	m := metrics.NewStorefront(reg)
	m.ObserveTransition("REVIEW", "PAYMENT_IN_PROGRESS")

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: "test"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	r := NewRouter(
		controller.NewAuthController(session),
		controller.NewProductController(gw.Catalog, session),
		controller.NewCartController(cart),
		controller.NewCheckoutController(checkout),
		controller.NewOrderController(gw.Orders, session),
		controller.NewAdminController(gw.Catalog, session, nil, nil),
		controller.NewWSController(websocket.NewHub(), cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(session),
		reg,
		cfg,
	)
	return r.Setup(), session
}

func TestRouter_Health(t *testing.T) {
	h, _ := setupRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := setupRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `checkout_transitions_total{from="REVIEW",to="PAYMENT_IN_PROGRESS"} 1`)
}

func TestRouter_ProtectedRoutesWaitForRestore(t *testing.T) {
	h, session := setupRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	assert.JSONEq(t, `{"ready":false,"authenticated":false}`, w.Body.String())

	_, err := session.Restore(context.Background())
	require.NoError(t, err)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login?next=%2Fapi%2Fv1%2Fcart"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BindingErrorsUseJSONNames(t *testing.T) {
	h, session := setupRouter(t)
	_, err := session.Restore(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"is required"`)
	assert.Contains(t, w.Body.String(), `"full_name":"is required"`)
}

func TestRouter_PaymentCallbackSkipsSessionCheck(t *testing.T) {
	h, session := setupRouter(t)
	_, err := session.Restore(context.Background())
	require.NoError(t, err)

	body := `{"attempt_id":"a-1","provider_order_id":"order_1","payment_id":"pay_1","signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment/success", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// reaches checkout, which knows no such payment
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CHECKOUT_INVALID_TRANSITION")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payment/dismiss", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
