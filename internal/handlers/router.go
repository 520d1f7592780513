package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler     *SessionHandler
	applicationHandler *ApplicationHandler
	logger             utils.Logger
}

func NewHandlerManager(
	sessionService services.SessionService,
	reviewService services.ReviewService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:     NewSessionHandler(sessionService, logger),
		applicationHandler: NewApplicationHandler(reviewService, logger),
		logger:             logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(utils.RequestID(), utils.ContextLogger(hm.logger), utils.LoggerMiddleware(hm.logger))

	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1", BearerAuth())
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.OpenSession)
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.GET("/:id/record", hm.sessionHandler.GetSessionRecord)
			sessions.POST("/:id/start", hm.sessionHandler.StartSession)
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SetAnswer)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)
		}

		applications := v1.Group("/applications")
		{
			applications.GET("/:id", hm.applicationHandler.GetApplication)
			applications.GET("/:id/export", hm.applicationHandler.ExportApplication)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "assessment-session-service",
	})
}
