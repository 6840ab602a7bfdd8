package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supplyhub/internal/ai"
	"supplyhub/internal/config"
	"supplyhub/internal/database"
	"supplyhub/internal/geo"
	"supplyhub/internal/handlers"
	"supplyhub/internal/middleware"
	"supplyhub/internal/models"
	"supplyhub/internal/orders"
	"supplyhub/internal/payment"
	"supplyhub/internal/pricing"
	"supplyhub/internal/reviews"
)

func main() {
	config.Load()
	env := config.AppEnv
	if err := env.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(env.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Println("⚠️ mongo disconnect:", err)
		}
	}()

	db := client.Database(env.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Printf("⚠️ index warning: %v", err)
	}

	store := database.NewStore(db)

	var gateway payment.Gateway = payment.MockGateway{}
	if env.PaymentsLive() {
		gateway = payment.NewStripeGateway(env.StripeAPIURL, env.StripeSecretKey, env.OutboundTimeout)
	} else {
		log.Println("[PAYMENT] [WARN] STRIPE_SECRET_KEY not set, using mock gateway")
	}
	processor := payment.NewProcessor(gateway, store, payment.Config{
		Currency:          env.Currency,
		MaxAttempts:       env.PaymentMaxAttempts,
		CallTimeout:       env.OutboundTimeout,
		ReconcileInterval: env.PaymentReconcileInterval,
	})
	go func() {
		if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Println("[PAYMENT] [ERROR] processor stopped:", err)
		}
	}()

	policy, err := pricing.NewPolicy(env.TaxRate, env.FreeDeliveryThreshold, env.DeliveryFee)
	if err != nil {
		log.Fatal(err)
	}
	orderService := orders.NewService(store, processor, policy, env.Currency)
	reviewService := reviews.NewService(store)
	advisor := ai.NewAdvisor(env.OpenAIBaseURL, env.OpenAIAPIKey, env.OpenAIModel, env.OutboundTimeout)
	geocoder := geo.NewCityGeocoder()
	tokens := handlers.TokenConfig{
		Secret:     env.JWTSecret,
		AccessTTL:  env.AccessTokenTTL,
		RefreshTTL: env.RefreshTokenTTL,
	}

	limiter := middleware.NewIPRateLimiter(env.RateLimitRPS, env.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	auth := middleware.AuthGuard(env.JWTSecret)
	sellers := middleware.RequireRoles(models.RoleSupplier, models.RoleAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin)

	r := gin.Default()
	r.Use(middleware.RequestMetrics())
	r.Static("/public", filepath.Dir(filepath.Clean(env.UploadDir)))
	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", handlers.Register(db, geocoder, tokens))
		authRoutes.POST("/login", handlers.Login(db, tokens))
		authRoutes.POST("/refresh", handlers.Refresh(db, tokens))
		authRoutes.POST("/logout", handlers.Logout(db))
		authRoutes.POST("/forgot-password", handlers.ForgotPassword(db))
		authRoutes.GET("/me", auth, handlers.GetMe(db))
		authRoutes.PUT("/profile", auth, handlers.UpdateProfile(db, geocoder))
		authRoutes.PUT("/password", auth, handlers.ChangePassword(db))
	}

	suppliers := api.Group("/suppliers")
	{
		suppliers.GET("/nearby", handlers.GetNearbySuppliers(db))
		suppliers.GET("/stats/overview", auth, admins, handlers.GetSupplierStats(db))
		suppliers.GET("", handlers.GetSuppliers(db))
		suppliers.GET("/:id", handlers.GetSupplier(db))
		suppliers.POST("", auth, sellers, handlers.CreateSupplier(db, geocoder))
		suppliers.PUT("/:id", auth, sellers, handlers.UpdateSupplier(db, geocoder))
		suppliers.DELETE("/:id", auth, sellers, handlers.DeleteSupplier(db))
	}

	products := api.Group("/products")
	{
		products.GET("/compare", handlers.CompareProducts(db))
		products.GET("/categories/list", handlers.GetProductCategories(db))
		products.GET("/stats/overview", auth, admins, handlers.GetProductStats(db))
		products.GET("", handlers.GetProducts(db))
		products.GET("/:id", handlers.GetProduct(db))
		products.POST("", auth, sellers, handlers.CreateProduct(db, advisor, env.Currency))
		products.PUT("/:id", auth, sellers, handlers.UpdateProduct(db))
		products.DELETE("/:id", auth, sellers, handlers.DeleteProduct(db, env.UploadDir))
		products.POST("/:id/images", auth, sellers, handlers.UploadProductImages(db, env.UploadDir))
	}

	orderRoutes := api.Group("/orders")
	{
		orderRoutes.GET("/track/:id", handlers.TrackOrder(orderService))
		orderRoutes.POST("", auth, handlers.CreateOrder(orderService))
		orderRoutes.GET("", auth, handlers.GetOrders(orderService, store))
		orderRoutes.GET("/stats/overview", auth, handlers.GetOrderStats(orderService))
		orderRoutes.GET("/:id", auth, handlers.GetOrder(orderService))
		orderRoutes.PUT("/:id/status", auth, sellers, handlers.UpdateOrderStatus(orderService))
		orderRoutes.PUT("/:id/cancel", auth, handlers.CancelOrder(orderService))
	}

	api.POST("/payments/webhook", handlers.PaymentWebhook(processor, env.PaymentWebhookSecret))

	reviewRoutes := api.Group("/reviews")
	{
		reviewRoutes.GET("/user/me", auth, handlers.GetMyReviews(reviewService))
		reviewRoutes.GET("/:id", handlers.GetSupplierReviews(reviewService))
		reviewRoutes.POST("", auth, handlers.CreateReview(reviewService))
		reviewRoutes.PUT("/:id", auth, handlers.UpdateReview(reviewService))
		reviewRoutes.DELETE("/:id", auth, handlers.DeleteReview(reviewService))
		reviewRoutes.PUT("/:id/helpful", auth, handlers.MarkReviewHelpful(reviewService))
	}

	aiRoutes := api.Group("/ai")
	{
		aiRoutes.POST("/predict-demand", handlers.PredictDemand(advisor))
		aiRoutes.POST("/recommendations", auth, handlers.Recommendations(advisor, store))
		aiRoutes.GET("/market-insights", auth, handlers.MarketInsights(store))
		aiRoutes.GET("/suggestions", auth, handlers.Suggestions(store))
	}

	srv := &http.Server{
		Addr:    ":" + env.Port,
		Handler: r,
	}
	go func() {
		log.Println("Server listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ shutdown:", err)
	}
}
