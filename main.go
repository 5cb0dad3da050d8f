package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Merle-py/beehouse-pdf-app-sub000/config"
	"github.com/Merle-py/beehouse-pdf-app-sub000/handler"
	"github.com/Merle-py/beehouse-pdf-app-sub000/middleware"
	"github.com/Merle-py/beehouse-pdf-app-sub000/pkg/logger"
	"github.com/Merle-py/beehouse-pdf-app-sub000/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize services
	store, err := service.NewStore(&cfg.Database)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize MINIO service", "error", err)
		os.Exit(1)
	}

	// Ensure bucket exists
	if err := minioSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure MINIO bucket", "error", err)
		os.Exit(1)
	}

	clicksignSvc := service.NewClicksignService(&cfg.Clicksign)
	crmSvc := service.NewCRMService(&cfg.CRM)
	lifecycleSvc := service.NewLifecycleService(store, minioSvc, clicksignSvc, &cfg.Clicksign)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	authorizationHandler := handler.NewAuthorizationHandler(lifecycleSvc, minioSvc)
	propertyHandler := handler.NewPropertyHandler(store, crmSvc)
	partyHandler := handler.NewPartyHandler(store, crmSvc)
	webhookHandler := handler.NewWebhookHandler(lifecycleSvc, &cfg.Clicksign)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/webhooks/clicksign", webhookHandler.HandleEvent)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/properties", propertyHandler.Create)
		protected.GET("/properties", propertyHandler.List)
		protected.GET("/properties/:id", propertyHandler.Get)

		protected.POST("/parties", partyHandler.Create)
		protected.GET("/parties", partyHandler.List)
		protected.GET("/parties/:id", partyHandler.Get)

		protected.POST("/authorizations", authorizationHandler.Create)
		protected.GET("/authorizations", authorizationHandler.List)
		protected.GET("/authorizations/:id", authorizationHandler.Get)
		protected.PUT("/authorizations/:id", authorizationHandler.Update)
		protected.DELETE("/authorizations/:id", authorizationHandler.Delete)
		protected.POST("/authorizations/:id/submit", authorizationHandler.Submit)
		protected.GET("/authorizations/:id/document", authorizationHandler.Document)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
