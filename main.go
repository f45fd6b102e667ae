package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-svc/cache"
	"storefront-svc/database"
	"storefront-svc/handlers"
	"storefront-svc/middleware"
	"storefront-svc/orders"
	"storefront-svc/payment"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("storefront-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Gateway credentials and signing secrets are read once here and
	// injected; business logic never touches the environment.
	gateway := payment.NewGateway(payment.Config{
		KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		BaseURL:   getEnv("RAZORPAY_BASE_URL", ""),
	}, logger)
	auth := middleware.NewAuth(getEnv("JWT_SECRET", "change-me-in-production"))

	builder := orders.NewBuilder(db, logger)
	store := orders.NewStore(db)
	reconciler := orders.NewReconciler(db, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("storefront-svc"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, auth, logger)
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/auth/me", auth.RequireCustomer(), authHandler.Me)
	router.POST("/admin/auth/login", authHandler.AdminLogin)

	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	router.GET("/products", productHandler.GetProducts)
	router.GET("/products/:id", productHandler.GetProduct)
	router.POST("/admin/products", auth.RequireAdmin(), productHandler.CreateProduct)
	router.PUT("/admin/products/:id", auth.RequireAdmin(), productHandler.UpdateProduct)
	router.DELETE("/admin/products/:id", auth.RequireAdmin(), productHandler.DeleteProduct)

	bannerHandler := handlers.NewBannerHandler(db, logger)
	router.GET("/banners", bannerHandler.ListBanners)
	router.GET("/admin/banners", auth.RequireAdmin(), bannerHandler.AdminListBanners)
	router.POST("/admin/banners", auth.RequireAdmin(), bannerHandler.CreateBanner)
	router.PUT("/admin/banners/:id", auth.RequireAdmin(), bannerHandler.UpdateBanner)
	router.DELETE("/admin/banners/:id", auth.RequireAdmin(), bannerHandler.DeleteBanner)

	addressHandler := handlers.NewAddressHandler(db, logger)
	router.GET("/customers/addresses", auth.RequireCustomer(), addressHandler.ListAddresses)
	router.POST("/customers/addresses", auth.OptionalCustomer(), addressHandler.CreateAddress)
	router.PUT("/customers/addresses/:id", auth.RequireCustomer(), addressHandler.UpdateAddress)
	router.DELETE("/customers/addresses/:id", auth.RequireCustomer(), addressHandler.DeleteAddress)

	orderHandler := handlers.NewOrderHandler(builder, store, reconciler, redisClient, logger)
	router.POST("/orders", auth.RequireCustomer(), orderHandler.CreateOrder)
	router.POST("/orders/guest", orderHandler.CreateGuestOrder)
	router.GET("/orders", auth.RequireCustomer(), orderHandler.ListOrders)
	router.GET("/orders/:id", auth.RequireCustomer(), orderHandler.GetOrder)
	router.GET("/admin/orders", auth.RequireAdmin(), orderHandler.AdminListOrders)
	router.GET("/admin/orders/:id", auth.RequireAdmin(), orderHandler.AdminGetOrder)
	router.PUT("/admin/orders/:id", auth.RequireAdmin(), orderHandler.AdminUpdateOrder)

	paymentHandler := handlers.NewPaymentHandler(gateway, store, reconciler, logger)
	router.POST("/payment/initiate", paymentHandler.Initiate)
	router.POST("/payment/verify", paymentHandler.Verify)
	router.GET("/payment/status/:orderId", paymentHandler.Status)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Storefront service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
