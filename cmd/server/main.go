package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"toperty/server/config"
	"toperty/server/internal/api"
	"toperty/server/internal/database"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/ingest"
	"toperty/server/internal/logging"
	"toperty/server/internal/processor"
	"toperty/server/internal/queue"
	"toperty/server/internal/search"
	"toperty/server/internal/zones"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}
	defer logCloser.Close()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.MigrateSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	geocoder := geocoding.NewGeocoder(cfg, logger)
	engine := search.NewEngine(db, geocoder, cfg, logger)
	aggregator := zones.NewAggregator(db, geocoder, cfg, logger)

	listings := queue.NewListingQueue(cfg.BatchProcessing.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(db.GetDB(), listings, cfg, logger)
	batchProcessor.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingest.AMQPURL != "" {
		consumer, err := ingest.Dial(cfg, listings, logger)
		if err != nil {
			logger.WithError(err).WithField(logging.FieldErrorKind, logging.KindInfrastructure).Fatal("Failed to connect listing consumer")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.WithError(err).WithField(logging.FieldErrorKind, logging.KindInfrastructure).Error("Listing consumer stopped")
			}
		}()
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", logging.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{logging.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	handler := api.NewHandler(db, engine, aggregator, geocoder, listings, cfg, logger)
	api.SetupRoutes(router, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	batchProcessor.Stop()
	stats := batchProcessor.Stats()
	logger.WithFields(logrus.Fields{
		"batches":  stats.Batches,
		"listings": stats.Listings,
		"failed":   stats.Failed,
	}).Info("Server stopped")
}
