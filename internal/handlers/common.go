package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/assessment-session-service/internal/services"
	"github.com/SAP-F-2025/assessment-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

const (
	CodeValidationFailed = "validation_failed"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeUpstream         = "upstream_unavailable"
	CodeInternal         = "internal_error"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// requestLogger prefers the per-request logger set by ContextLogger
func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	return utils.GetLoggerFromContext(c, h.logger)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"remote_addr", c.ClientIP(),
		"user_agent", c.Request.UserAgent(),
	}
	fields = append(fields, additionalFields...)

	h.requestLogger(c).Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.requestLogger(c).LogError(err, message, additionalFields...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.requestLogger(c).Warn(message, additionalFields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
		Code:    code,
	}

	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil && statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else if err != nil {
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.JSON(statusCode, errorResp)
}

// handleServiceError maps service errors onto HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Validation failed", err, validationErrors)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "Access denied", err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeNotFound, "Session not found", err)
	case errors.Is(err, services.ErrAssessmentNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeNotFound, "Assessment not found", err)
	case errors.Is(err, services.ErrApplicationNotFound):
		h.RespondWithError(c, http.StatusNotFound, CodeNotFound, "Application not found", err)
	case errors.Is(err, services.ErrSessionReadOnly):
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "Recruiters can only preview assessments", err)
	case errors.Is(err, services.ErrAssessmentTaken):
		h.RespondWithError(c, http.StatusConflict, CodeConflict, "Assessment already submitted", err)
	case errors.Is(err, services.ErrSubmissionFailed):
		h.RespondWithError(c, http.StatusBadGateway, CodeUpstream, services.MessageSubmissionFailed, err)
	case errors.Is(err, services.ErrAssessmentUnavailable), errors.Is(err, services.ErrAssessmentInvalid):
		h.RespondWithError(c, http.StatusBadGateway, CodeUpstream, "Assessment could not be loaded, please retry", err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, err.Error(), err)
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusUnauthorized, CodeUnauthorized, "User not authenticated", err)
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, CodeForbidden, "Access denied", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, CodeNotFound, "Resource not found", err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, CodeConflict, err.Error(), err)
	case services.IsUpstream(err):
		h.RespondWithError(c, http.StatusBadGateway, CodeUpstream, "Portal is unavailable, please retry", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, CodeInternal, "Internal server error", err)
	}
}
