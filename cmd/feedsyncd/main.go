package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pressline/feedsync/internal/cache"
	"github.com/pressline/feedsync/internal/db"
	"github.com/pressline/feedsync/internal/feed"
	"github.com/pressline/feedsync/internal/push"
	"github.com/pressline/feedsync/internal/remote"
	"github.com/pressline/feedsync/internal/server"
	"github.com/pressline/feedsync/pkg/config"
	"github.com/pressline/feedsync/pkg/logging"
	"github.com/pressline/feedsync/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Feedsync")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to the database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Optional Redis cache for point lookups
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Remote content API client
	client, err := remote.New(&cfg.Remote)
	if err != nil {
		logger.Fatal("Failed to create remote client", zap.Error(err))
	}

	store := db.NewStore(database)

	registry := feed.NewRegistry(feed.Options{
		Store:           store,
		API:             client,
		Lookups:         redisCache,
		Expiry:          cfg.Feed.ExpiryWindow,
		RefreshDeadline: cfg.Feed.RefreshDeadline,
		MaxWorkers:      cfg.Remote.MaxWorkers,
		ErrorSink: func(err error) {
			logger.Warn("Feed refresh failed", zap.Error(err))
		},
	})
	defer registry.Close()

	// Background purge of hard-expired posts
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	janitor := feed.NewJanitor(store, cfg.Feed.HardExpiry, cfg.Feed.PurgeInterval)
	go func() {
		if err := janitor.Run(janitorCtx); err != nil && err != context.Canceled {
			logger.Error("Janitor stopped", zap.Error(err))
		}
	}()

	trigger := push.NewHandler(push.NewReconciler(store), registry)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := server.NewRouter(registry, trigger, store, map[string]server.HealthChecker{
		"database": database.Health,
		"redis": func(ctx context.Context) error {
			if err := redisCache.Health(ctx); err != nil && err != cache.ErrCacheDisabled {
				return err
			}
			return nil
		},
	})
	router.SetupRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	stopJanitor()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Feedsync exited")
}
