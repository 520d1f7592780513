package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/assessment-session-service/internal/cache"
	"github.com/SAP-F-2025/assessment-session-service/internal/config"
	"github.com/SAP-F-2025/assessment-session-service/internal/events"
	"github.com/SAP-F-2025/assessment-session-service/internal/handlers"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
	"github.com/SAP-F-2025/assessment-session-service/pkg"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := utils.NewLogger(cfg.Environment)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	sessionRepo := postgres.NewSessionPostgreSQL(db)

	// The service runs without a cache when redis is down.
	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, logger)
	}

	publisher, subscriber, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		publisher = events.NewMockEventPublisher(logger)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()
	if subscriber != nil {
		if err := events.LogSessionEvents(ctx, subscriber, cfg.Events.SessionTopic, logger); err != nil {
			logger.Warn("Session events will not be logged", "error", err)
		}
	}

	portalClient := portal.NewHTTPClient(cfg.PortalBaseURL, cfg.PortalTimeout, logger)
	v := validator.New()

	sessionService := services.NewSessionService(portalClient, sessionRepo, cacheService, publisher, v, logger, services.SessionServiceConfig{
		PreviewQuestions:  cfg.PreviewQuestions,
		CacheTTL:          cfg.AssessmentCacheTTL,
		Retention:         cfg.SessionRetention,
		AutoSubmitTimeout: cfg.AutoSubmitTimeout,
	})
	defer sessionService.Shutdown()
	reviewService := services.NewReviewService(portalClient, cacheService, v, logger)

	go sessionService.RunSweeper(ctx, cfg.SweepInterval)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewHandlerManager(sessionService, reviewService, utils.NewSlogLogger(logger)).SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}
