package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/app/service"
	"github.com/ikkim/storefront/internal/db"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/gateway/local"
	"github.com/ikkim/storefront/internal/gateway/rest"
	"github.com/ikkim/storefront/internal/geocode"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/reconciliation"
	"github.com/ikkim/storefront/internal/router"
	"github.com/ikkim/storefront/internal/scheduler"
	"github.com/ikkim/storefront/internal/storage"
	"github.com/ikkim/storefront/internal/websocket"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/metrics"
	"github.com/ikkim/storefront/pkg/payment/razorpay"
	redisclient "github.com/ikkim/storefront/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := cfg.Server.LogLevel
	if logLevel == "" {
		logLevel = "info"
		if cfg.Server.Environment == "development" {
			logLevel = "debug"
		}
	}
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting storefront shell", map[string]interface{}{
		"environment":  cfg.Server.Environment,
		"port":         cfg.Server.Port,
		"backend_mode": cfg.Backend.Mode,
		"log_level":    logLevel,
	})

	// The ledger always lives in the local database; backend tables only
	// when the embedded backend is used.
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()
	if err := db.Migrate(cfg.Backend.Mode == config.BackendModeLocal); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	if cfg.Redis.Enabled {
		if err := redisclient.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer redisclient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefront(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	hub := websocket.NewHub()
	go hub.Run()

	// The gateway reads the bearer token from the session service, which
	// in turn needs the gateway; the closure breaks the cycle.
	var sessionService service.SessionService
	creds := gateway.CredentialFunc(func() string {
		if sessionService == nil {
			return ""
		}
		return sessionService.BearerToken()
	})
	gw := gateway.Instrument(newGateway(cfg, creds), storefrontMetrics.ObserveGatewayCall)

	sessionService = service.NewSessionService(gw.Auth, newSessionStore(cfg), hub)
	cartService := service.NewCartService(gw.Cart, sessionService, hub)

	ledger := reconciliation.NewLedger(db.GetDB())
	geocoder := geocode.NewNominatim(geocode.Options{
		BaseURL:        cfg.Geocode.BaseURL,
		UserAgent:      cfg.Geocode.UserAgent,
		Timeout:        cfg.Geocode.Timeout,
		DefaultCountry: cfg.Checkout.DefaultCountry,
	})
	checkoutService := service.NewCheckoutService(
		service.CheckoutConfig{
			TaxRate:        cfg.Checkout.TaxRate,
			Currency:       cfg.Checkout.Currency,
			DefaultCountry: cfg.Checkout.DefaultCountry,
			Description:    cfg.Payment.Razorpay.Description,
		},
		sessionService,
		cartService,
		gw.Orders,
		newPaymentWidget(cfg),
		geocoder,
		ledger,
		hub,
		service.CheckoutObserverFunc(func(_ string, from, to service.CheckoutState, _ service.CheckoutSnapshot) {
			storefrontMetrics.ObserveTransition(string(from), string(to))
			if to == service.StateReconciliationFailed {
				storefrontMetrics.IncReconciliationFailure()
			}
		}),
	)

	images := storage.NewS3Storage(cfg.S3)

	// Protected routes answer 503 until this finishes.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := sessionService.Restore(ctx); err != nil {
			logger.Warn("Session restore failed, starting signed out", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	reportScheduler := scheduler.NewReconciliationScheduler(ledger,
		cfg.Scheduler.ReconciliationReportSpec, cfg.Scheduler.ReportDir, cronMetrics)
	if err := reportScheduler.Start(); err != nil {
		logger.Warn("Reconciliation report scheduler disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer reportScheduler.Stop()
	}

	// Initialize controllers
	authController := controller.NewAuthController(sessionService)
	productController := controller.NewProductController(gw.Catalog, sessionService)
	cartController := controller.NewCartController(cartService)
	checkoutController := controller.NewCheckoutController(checkoutService)
	orderController := controller.NewOrderController(gw.Orders, sessionService)
	adminController := controller.NewAdminController(gw.Catalog, sessionService, images, ledger)
	wsController := controller.NewWSController(hub, cfg.CORS.AllowedOrigins)

	// Setup router
	r := router.NewRouter(
		authController,
		productController,
		cartController,
		checkoutController,
		orderController,
		adminController,
		wsController,
		middleware.NewAuthMiddleware(sessionService),
		registry,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", err)
	}
	checkoutService.Reset()
	hub.Stop()
	logger.Info("Server stopped successfully")
}

func newGateway(cfg *config.Config, creds gateway.CredentialSource) *gateway.Gateway {
	if cfg.Backend.Mode == config.BackendModeREST {
		logger.Info("Using hosted backend", map[string]interface{}{
			"base_url": cfg.Backend.BaseURL,
		})
		return rest.New(rest.Options{
			BaseURL: cfg.Backend.BaseURL,
			APIKey:  cfg.Backend.APIKey,
			Timeout: cfg.Backend.Timeout,
		}, creds).Gateway()
	}

	opts := local.Options{
		JWTSecret:   cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.AccessTokenExpiry,
	}
	if cfg.Redis.Enabled {
		opts.Revoker = redisclient.NewTokenBlacklist(redisclient.GetClient())
	}
	logger.Info("Using embedded backend", map[string]interface{}{
		"driver": cfg.Database.Driver,
	})
	return local.New(db.GetDB(), creds, opts).Gateway()
}

func newSessionStore(cfg *config.Config) service.SessionStore {
	if cfg.Session.Store == config.SessionStoreRedis {
		return service.NewRedisStore(redisclient.GetClient(), cfg.Session.DeviceID)
	}
	return service.NewFileStore(cfg.Session.FilePath)
}

func newPaymentWidget(cfg *config.Config) service.PaymentWidget {
	rp := cfg.Payment.Razorpay
	client, err := razorpay.NewClient(razorpay.Config{
		KeyID:     rp.KeyID,
		KeySecret: rp.KeySecret,
		BaseURL:   rp.BaseURL,
	})
	if err != nil {
		logger.Warn("Razorpay is not configured, payments are disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return payment.Unavailable{}
	}
	return payment.NewRazorpayWidget(client, payment.WidgetOptions{
		MerchantName:   rp.MerchantName,
		Description:    rp.Description,
		ThemeColor:     rp.ThemeColor,
		ConfirmWithAPI: rp.ConfirmPayments,
	})
}
