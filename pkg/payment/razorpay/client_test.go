package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{KeyID: "rzp_test_key", KeySecret: "shh", BaseURL: server.URL + "/"})
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{KeyID: "rzp_test_key"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "shh", pass)

		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(11000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "attempt-1", req.Receipt)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_abc","entity":"order","amount":11000,"currency":"INR","receipt":"attempt-1","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 11000, Currency: "INR", Receipt: "attempt-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`, want: ErrInvalidRequest},
		{name: "bad keys", status: http.StatusUnauthorized, body: `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`, want: ErrUnauthorized},
		{name: "outage", status: http.StatusBadGateway, body: `oops`, want: ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 0, Currency: "INR"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFetchPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payments/pay_123", r.URL.Path)
		w.Write([]byte(`{"id":"pay_123","amount":11000,"currency":"INR","status":"captured","order_id":"order_abc","captured":true}`))
	})

	payment, err := client.FetchPayment(context.Background(), "pay_123")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", payment.OrderID)
	assert.True(t, payment.Settled())
}

func TestVerifySignature(t *testing.T) {
	client, err := NewClient(Config{KeyID: "rzp_test_key", KeySecret: "shh", BaseURL: "https://api.razorpay.com/v1"})
	require.NoError(t, err)

	sig := Sign("shh", "order_abc", "pay_123")
	assert.Len(t, sig, 64)
	assert.NoError(t, client.VerifySignature("order_abc", "pay_123", sig))
	assert.ErrorIs(t, client.VerifySignature("order_abc", "pay_999", sig), ErrInvalidSignature)
	assert.ErrorIs(t, client.VerifySignature("order_abc", "pay_123", Sign("other", "order_abc", "pay_123")), ErrInvalidSignature)
	assert.ErrorIs(t, client.VerifySignature("order_abc", "pay_123", ""), ErrInvalidSignature)
}
