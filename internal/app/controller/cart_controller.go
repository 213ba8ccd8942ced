package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
)

type CartController struct {
	cart service.CartService
}

func NewCartController(cart service.CartService) *CartController {
	return &CartController{
		cart: cart,
	}
}

type AddToCartRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	VariantSKU string `json:"variant_sku" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
}

// GetCart returns the signed-in user's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	cart, err := ctrl.cart.Fetch(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	respondCart(c, http.StatusOK, cart)
}

// AddToCart adds a quantity of a variant; an existing line is incremented.
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.CartInvalidQuantity))
		return
	}

	cart, err := ctrl.cart.AddItem(c.Request.Context(), req.ProductID, req.VariantSKU, req.Quantity)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	respondCart(c, http.StatusOK, cart)
}

// RemoveFromCart drops a line; removing a missing line is not an error.
// DELETE /api/v1/cart/items/:productId/:sku
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	cart, err := ctrl.cart.RemoveItem(c.Request.Context(), c.Param("productId"), c.Param("sku"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	respondCart(c, http.StatusOK, cart)
}

func respondCart(c *gin.Context, status int, cart *model.Cart) {
	if cart == nil {
		cart = &model.Cart{Items: []model.CartItem{}}
	}
	c.JSON(status, gin.H{
		"cart":  cart,
		"count": cart.ItemCount(),
		"total": cart.TotalPrice,
	})
}
