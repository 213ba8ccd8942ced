package controller

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderController_GetOrders_Empty(t *testing.T) {
	app := setupControllerTest(t)
	app.signUp(t, "shopper@example.com")

	w := app.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["orders"])
}

func TestOrderController_GetOrders_RequiresSession(t *testing.T) {
	app := setupControllerTest(t)

	w := app.do(t, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
