package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securesearch/securesearch/internal/apierrors"
	"github.com/securesearch/securesearch/internal/config"
	"github.com/securesearch/securesearch/internal/handlers"
	"github.com/securesearch/securesearch/internal/lifecycle"
	"github.com/securesearch/securesearch/internal/logging"
	"github.com/securesearch/securesearch/internal/middleware"
	"github.com/securesearch/securesearch/internal/repository"
	"github.com/securesearch/securesearch/internal/service"
)

func main() {
	logger := logging.NewStructuredLogger("securesearch")

	db, err := config.ConnectDatabase()
	if err != nil {
		logger.WithError(context.Background(), err).Fatal("failed to connect to database")
	}

	clientRegistry, err := repository.NewClientRegistry(db)
	if err != nil {
		logger.WithError(context.Background(), err).Fatal("failed to initialize client registry")
	}
	embeddingStore, err := repository.NewEmbeddingStore(db)
	if err != nil {
		logger.WithError(context.Background(), err).Fatal("failed to initialize embedding store")
	}
	lshIndex := repository.NewLshIndex(db)

	ingestionService := service.NewIngestionService(clientRegistry, embeddingStore)
	searchEngine := service.NewSearchEngine(clientRegistry, embeddingStore, lshIndex, service.DefaultCodecResolver, logger)

	maintenanceHorizon := config.GetEnvAsDuration("SECURE_SEARCH_ORPHAN_POSTING_HORIZON", 24*time.Hour)
	maintenanceInterval := config.GetEnvAsDuration("SECURE_SEARCH_MAINTENANCE_INTERVAL", time.Hour)
	maintenanceWorker := service.NewMaintenanceWorker(embeddingStore, logger, maintenanceInterval, maintenanceHorizon)

	initializeHandler := handlers.NewInitializeHandler(ingestionService)
	addEmbeddingHandler := handlers.NewAddEmbeddingHandler(ingestionService)
	searchHandler := handlers.NewSearchHandler(searchEngine)
	statsHandler := handlers.NewStatsHandler(clientRegistry)

	if config.GetEnv("ENVIRONMENT", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger(logger))
	router.Use(apierrors.Handler(logger.Logger))

	port := config.GetEnv("PORT", "8090")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lifecycleManager := lifecycle.NewManager(server, logger.Logger)
	lifecycleManager.SetShutdownTimeout(30 * time.Second)
	lifecycleManager.SetHealthCheckPeriod(10 * time.Second)

	if sqlDB, err := db.DB(); err == nil {
		lifecycleManager.AddHealthChecker("database", lifecycle.HealthCheckFunc(func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		}))
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", lifecycleManager.LivenessHandler())
	router.GET("/health/ready", lifecycleManager.ReadinessHandler())
	router.GET("/health/detailed", lifecycleManager.HealthHandler())
	router.GET("/health", handlers.Health)

	router.POST("/initialize", initializeHandler.Initialize)

	authenticated := router.Group("/")
	authenticated.Use(middleware.BearerAuth(clientRegistry))
	rateLimiter := middleware.NewRateLimiterStore(config.GetEnvAsInt("SECURE_SEARCH_RATE_LIMIT_PER_MINUTE", 120))
	authenticated.Use(middleware.RateLimit(rateLimiter))
	{
		authenticated.POST("/add_embedding", addEmbeddingHandler.AddEmbedding)
		authenticated.POST("/search", searchHandler.Search)
		authenticated.GET("/stats/:client_id", statsHandler.Stats)
	}

	maintenanceCtx, cancelMaintenance := context.WithCancel(context.Background())
	go maintenanceWorker.Run(maintenanceCtx)

	lifecycleManager.OnShutdown(func(ctx context.Context) error {
		cancelMaintenance()
		if sqlDB, err := db.DB(); err == nil {
			return sqlDB.Close()
		}
		return nil
	})

	lifecycleManager.Start(context.Background())

	logger.Logger.WithField("port", port).Info("securesearch server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed: ", err)
	}

	logger.Logger.Info("securesearch server exited")
}
