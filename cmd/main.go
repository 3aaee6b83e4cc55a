package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suteetoe/tradeflow/internal/handler"
	"github.com/suteetoe/tradeflow/internal/middleware"
	"github.com/suteetoe/tradeflow/internal/service"
	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/pkg/database"
	"github.com/suteetoe/tradeflow/pkg/extractor"
	"github.com/suteetoe/tradeflow/pkg/jwtutil"
	"github.com/suteetoe/tradeflow/pkg/logger"
	"github.com/suteetoe/tradeflow/pkg/metrics"
	"github.com/suteetoe/tradeflow/pkg/notify"
	"github.com/suteetoe/tradeflow/pkg/storage"
	"github.com/suteetoe/tradeflow/pkg/tokenstore"
	"github.com/suteetoe/tradeflow/pkg/upstream"
	"github.com/suteetoe/tradeflow/pkg/validator"
	"github.com/suteetoe/tradeflow/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting TradeFlow API...", cfg.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	httpMetrics := metrics.NewHTTPMetrics(cfg.ServiceName, promclient.DefaultRegisterer)
	log.Info("Prometheus metrics initialized")

	// Initialize database and run migrations
	db, err := database.InitDB(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed",
		zap.String("db_host", cfg.DB.Host), zap.String("db_name", cfg.DB.DBName))

	jwt := jwtutil.NewJWTUtil(&cfg.JWT)

	blacklist, err := tokenstore.New(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize token blacklist", zap.Error(err))
	}

	store, err := storage.New(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize document storage", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	ex, err := extractor.New(startCtx, &cfg.Extractor, log)
	if err != nil {
		cancelStart()
		log.Fatal("Failed to initialize document extractor", zap.Error(err))
	}
	notifier, err := notify.New(startCtx, &cfg.Notify, log)
	cancelStart()
	if err != nil {
		log.Fatal("Failed to initialize notifier", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Notify.Timeout, log)

	carrierClient := upstream.NewClient("carrier", cfg.Carrier, log)
	customsClient := upstream.NewClient("customs", cfg.Customs, log)

	authService := service.NewAuthService(db, jwt, blacklist)
	runner := service.NewExtractionRunner(db, store, ex, cfg.Extractor.MaxConcurrency, cfg.Extractor.Timeout, log)
	if !runner.Enabled() {
		log.Warn("Document extraction disabled, uploads will be marked skipped")
	}

	handlers := &handler.Handlers{
		Health:    handler.NewHealthHandler(db),
		Auth:      handler.NewAuthHandler(authService),
		Shipments: handler.NewShipmentHandler(service.NewShipmentService(db)),
		Quotes:    handler.NewQuoteHandler(service.NewQuoteService(db, dispatcher)),
		Tracking:  handler.NewTrackingHandler(service.NewTrackingService(db, dispatcher)),
		Documents: handler.NewDocumentHandler(service.NewDocumentService(db, store, runner, cfg.Upload.MaxBytes, cfg.Upload.TempDir)),
		Carriers:  handler.NewCarrierHandler(service.NewCarrierService(db, carrierClient)),
		Customs:   handler.NewCustomsHandler(service.NewCustomsService(db, customsClient)),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(httpMetrics.Middleware())
	e.Use(middleware.RequestLoggerMiddleware)

	// Prometheus metrics endpoint
	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))

	if cfg.Storage.Driver == "local" || cfg.Storage.Driver == "" {
		e.Static("/files", cfg.Storage.LocalDir)
	}

	handler.RegisterRoutes(e, handlers, middleware.JWTAuthMiddleware(jwt, authService))

	// Start server
	go func() {
		port := cfg.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := runner.Shutdown(ctx); err != nil {
		log.Warn("Extraction jobs still running at shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(); err != nil {
		log.Warn("Failed to close notifier", zap.Error(err))
	}
	if err := blacklist.Close(); err != nil {
		log.Warn("Failed to close token blacklist", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
	log.Info("Server stopped")
}
