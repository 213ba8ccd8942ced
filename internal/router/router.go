package router

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type Router struct {
	authController     *controller.AuthController
	productController  *controller.ProductController
	cartController     *controller.CartController
	checkoutController *controller.CheckoutController
	orderController    *controller.OrderController
	adminController    *controller.AdminController
	wsController       *controller.WSController
	authMiddleware     *middleware.AuthMiddleware
	guard              *middleware.InFlightGuard
	gatherer           prometheus.Gatherer
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	checkoutController *controller.CheckoutController,
	orderController *controller.OrderController,
	adminController *controller.AdminController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		productController:  productController,
		cartController:     cartController,
		checkoutController: checkoutController,
		orderController:    orderController,
		adminController:    adminController,
		wsController:       wsController,
		authMiddleware:     authMiddleware,
		guard:              middleware.NewInFlightGuard(),
		gatherer:           gatherer,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)
	useJSONFieldNames()

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Storefront is running",
		})
	})
	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(r.gatherer)))
	}

	ready := r.authMiddleware.RequireReady()
	authenticated := r.authMiddleware.Authenticate()

	v1 := router.Group("/api/v1")
	{
		v1.GET("/session", r.authController.GetSession)

		auth := v1.Group("/auth", ready)
		{
			auth.POST("/register", r.guard.Guard("auth"), r.authController.Register)
			auth.POST("/login", r.guard.Guard("auth"), r.authController.Login)
			auth.POST("/logout", r.guard.Guard("auth"), r.authController.Logout)
			auth.GET("/me", authenticated, r.authController.GetMe)
		}

		products := v1.Group("/products", ready, r.authMiddleware.OptionalAuthenticate())
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:slug", r.productController.GetProduct)
		}

		cart := v1.Group("/cart", ready, authenticated)
		{
			cart.GET("", r.cartController.GetCart)
			cart.POST("/items", r.guard.Guard("cart.add"), r.cartController.AddToCart)
			cart.DELETE("/items/:productId/:sku", r.guard.Guard("cart.remove"), r.cartController.RemoveFromCart)
		}

		checkout := v1.Group("/checkout", ready, authenticated)
		{
			checkout.GET("", r.checkoutController.GetState)
			checkout.POST("/start", r.guard.Guard("checkout.start"), r.checkoutController.Start)
			checkout.POST("/address", r.guard.Guard("checkout.address"), r.checkoutController.SubmitAddress)
			checkout.POST("/back", r.guard.Guard("checkout.address"), r.checkoutController.EditAddress)
			checkout.POST("/map/open", r.checkoutController.OpenMap)
			checkout.POST("/map/locate", r.guard.Guard("checkout.locate"), r.checkoutController.LocateAddress)
			checkout.POST("/map/close", r.checkoutController.CloseMap)
			checkout.POST("/payment", r.guard.Guard("checkout.payment"), r.checkoutController.BeginPayment)
			checkout.POST("/payment/dismiss", r.guard.Guard("checkout.callback"), r.checkoutController.PaymentDismiss)
			checkout.POST("/payment/fail", r.guard.Guard("checkout.callback"), r.checkoutController.PaymentFail)
			checkout.POST("/retry-order", r.guard.Guard("checkout.retry"), r.checkoutController.RetryOrder)
		}

		// the widget's success callback is verified by its signature and must
		// reach checkout even when the session ended while the widget was open
		v1.POST("/checkout/payment/success", ready, r.guard.Guard("checkout.callback"), r.checkoutController.PaymentSuccess)

		v1.GET("/orders", ready, authenticated, r.orderController.GetOrders)

		admin := v1.Group("/admin", ready, authenticated, r.authMiddleware.RequireAdmin())
		{
			admin.POST("/products", r.guard.Guard("admin.products"), r.adminController.CreateProduct)
			admin.PUT("/products/:id", r.guard.Guard("admin.products"), r.adminController.UpdateProduct)
			admin.DELETE("/products/:id", r.guard.Guard("admin.products"), r.adminController.DeleteProduct)
			admin.POST("/uploads", r.adminController.UploadImage)
			admin.POST("/uploads/presigned-url", r.adminController.GeneratePresignedURL)
			admin.GET("/reconciliation", r.adminController.ListReconciliation)
			admin.GET("/reconciliation/report", r.adminController.DownloadReconciliationReport)
		}

		v1.GET("/ws", ready, authenticated, r.wsController.HandleWebSocket)
	}

	return router
}

// useJSONFieldNames makes binding errors name fields the way the UI sends them.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
