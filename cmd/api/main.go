package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artemk/menulive/internal/api"
	"github.com/artemk/menulive/internal/api/middleware"
	"github.com/artemk/menulive/internal/cache"
	"github.com/artemk/menulive/internal/config"
	"github.com/artemk/menulive/internal/logger"
	"github.com/artemk/menulive/internal/repository"
	"github.com/artemk/menulive/internal/service"
	"github.com/artemk/menulive/internal/ws"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	menuRepo := repository.NewMenuRepository(db)
	translationCache := repository.NewTranslationCacheRepository(db, appLogger)

	// Initialize response cache store. An unreachable store only disables
	// the cache (bypass), it never blocks startup.
	cacheStore := cache.NewRedisStore(&cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer cacheStore.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheStore.Ping(pingCtx); err != nil {
		appLogger.WithError(err).Warn("Response cache store unreachable, reads will bypass the cache")
	}
	pingCancel()

	invalidator := cache.NewInvalidator(cacheStore, cfg.Cache.Prefix, appLogger)

	// Initialize notification hub
	hub := ws.NewHub(appLogger)

	// Initialize translation services
	translator := service.NewTranslatorService(&service.TranslatorConfig{
		Provider:   cfg.Translator.Provider,
		Model:      cfg.Translator.Model,
		APIKey:     cfg.Translator.APIKey,
		BaseURL:    cfg.Translator.BaseURL,
		Timeout:    cfg.Translator.Timeout,
		MaxRetries: cfg.Translator.MaxRetries,
		RetryDelay: cfg.Translator.RetryDelay,
	})
	if translator.Configured() {
		appLogger.WithField("model", translator.GetModel()).Info("Translation provider ready")
	} else {
		appLogger.Warn("Translator API key not configured, bulk translation jobs will fail immediately")
	}

	jobStore := service.NewMemoryJobStore()
	sweeperStop := make(chan struct{})
	service.StartSweeper(jobStore, cfg.Jobs.SweepInterval, cfg.Jobs.Retention, sweeperStop)
	defer close(sweeperStop)

	bulk := service.NewBulkTranslateService(
		menuRepo,
		translationCache,
		translator,
		jobStore,
		appLogger,
		&service.BulkTranslateConfig{
			DishDelay: cfg.Jobs.DishDelay,
			MaxErrors: cfg.Jobs.MaxErrors,
		},
	)

	// Setup router
	router := api.SetupRouter(&api.RouterDeps{
		MenuRepo:     menuRepo,
		Bulk:         bulk,
		CacheStore:   cacheStore,
		Invalidator:  invalidator,
		Hub:          hub,
		CacheEnabled: cfg.Cache.Enabled,
		CachePrefix:  cfg.Cache.Prefix,
		CacheTTL:     cfg.Cache.TTL,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Mode: cfg.Server.Mode,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
