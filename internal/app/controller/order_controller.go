package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
)

type OrderController struct {
	orders  gateway.OrderAPI
	session service.SessionService
}

func NewOrderController(orders gateway.OrderAPI, session service.SessionService) *OrderController {
	return &OrderController{
		orders:  orders,
		session: session,
	}
}

// GetOrders lists the signed-in user's orders, newest first
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	orders, err := ctrl.orders.ListMine(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, ctrl.session.HandleAuthFailure(c.Request.Context(), err))
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}
