package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/service"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
)

type CheckoutController struct {
	checkout service.CheckoutService
}

func NewCheckoutController(checkout service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkout: checkout,
	}
}

type LocateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
}

type PaymentAttemptRequest struct {
	AttemptID string `json:"attempt_id" binding:"required"`
	Reason    string `json:"reason"`
}

// GetState returns the current checkout snapshot
// GET /api/v1/checkout
func (ctrl *CheckoutController) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"checkout": ctrl.checkout.Snapshot()})
}

// Start opens or resumes the checkout flow
// POST /api/v1/checkout/start
func (ctrl *CheckoutController) Start(c *gin.Context) {
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.Start(c.Request.Context())
	})
}

// SubmitAddress validates the shipping address and moves to review
// POST /api/v1/checkout/address
func (ctrl *CheckoutController) SubmitAddress(c *gin.Context) {
	var address model.ShippingAddress
	if err := c.ShouldBindJSON(&address); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid address payload", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "the address could not be read")
		return
	}
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.SubmitAddress(c.Request.Context(), address)
	})
}

// EditAddress goes back from review to the address form
// POST /api/v1/checkout/back
func (ctrl *CheckoutController) EditAddress(c *gin.Context) {
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.EditAddress(c.Request.Context())
	})
}

// OpenMap starts a map pick
// POST /api/v1/checkout/map/open
func (ctrl *CheckoutController) OpenMap(c *gin.Context) {
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.OpenMapPicker(c.Request.Context())
	})
}

// LocateAddress pre-fills the address from a picked position
// POST /api/v1/checkout/map/locate
func (ctrl *CheckoutController) LocateAddress(c *gin.Context) {
	var req LocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationInvalidRange))
		return
	}
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.LocateAddress(c.Request.Context(), *req.Latitude, *req.Longitude)
	})
}

// CloseMap cancels a pending lookup
// POST /api/v1/checkout/map/close
func (ctrl *CheckoutController) CloseMap(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"checkout": ctrl.checkout.CloseMapPicker(c.Request.Context())})
}

// BeginPayment creates the payment attempt the UI opens the widget with
// POST /api/v1/checkout/payment
func (ctrl *CheckoutController) BeginPayment(c *gin.Context) {
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.BeginPayment(c.Request.Context())
	})
}

// PaymentSuccess receives the widget success callback
// POST /api/v1/checkout/payment/success
func (ctrl *CheckoutController) PaymentSuccess(c *gin.Context) {
	var cb service.PaymentCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "the payment callback could not be read")
		return
	}
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.CompletePayment(c.Request.Context(), cb)
	})
}

// PaymentDismiss is sent when the user closes the widget
// POST /api/v1/checkout/payment/dismiss
func (ctrl *CheckoutController) PaymentDismiss(c *gin.Context) {
	var req PaymentAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationRequired))
		return
	}
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.DismissPayment(c.Request.Context(), req.AttemptID)
	})
}

// PaymentFail is sent when the widget reports a failed charge
// POST /api/v1/checkout/payment/fail
func (ctrl *CheckoutController) PaymentFail(c *gin.Context) {
	var req PaymentAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.FromValidation(err, apperrors.ValidationRequired))
		return
	}
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.FailPayment(c.Request.Context(), req.AttemptID, req.Reason)
	})
}

// RetryOrder re-attempts order creation after a reconciliation failure
// POST /api/v1/checkout/retry-order
func (ctrl *CheckoutController) RetryOrder(c *gin.Context) {
	respondCheckout(c, func() (service.CheckoutSnapshot, error) {
		return ctrl.checkout.RetryOrder(c.Request.Context())
	})
}

// respondCheckout writes the snapshot after a successful action. On error
// the UI re-reads state from the live update stream or GET /checkout.
func respondCheckout(c *gin.Context, action func() (service.CheckoutSnapshot, error)) {
	snap, err := action()
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": snap})
}
