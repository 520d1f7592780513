package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// Logger exposes the underlying slog logger with the service attributes attached
func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		// Adjust log level based on error type
		switch {
		case IsValidation(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsUnauthorized(err), IsForbidden(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		case IsConflict(err):
			level = slog.LevelInfo
			status = "conflict"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErrs ValidationErrors
		var permErr *PermissionError
		if errors.As(err, &validationErrs) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErrs)))
		} else if errors.As(err, &permErr) {
			attrs = append(attrs, slog.String("permission_action", permErr.Action))
		}
	}

	// Add request context if available
	if requestID, ok := ctx.Value("request_id").(string); ok {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

func (l *ServiceLogger) LogValidationError(ctx context.Context, operation, userID string, validationErrors ValidationErrors) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Int("error_count", len(validationErrors)),
	}

	for i, err := range validationErrors {
		if i < 5 { // Limit to first 5 errors to avoid log spam
			attrs = append(attrs, slog.Group(fmt.Sprintf("error_%d", i+1),
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.Any("value", err.Value),
			))
		}
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Validation failed", attrs...)
}

func (l *ServiceLogger) LogPermissionDenied(ctx context.Context, operation string, permError *PermissionError) {
	l.logger.LogAttrs(ctx, slog.LevelWarn, "Permission denied",
		slog.String("operation", operation),
		slog.String("user_id", permError.UserID),
		slog.String("resource_id", permError.ResourceID),
		slog.String("resource_type", permError.Resource),
		slog.String("action", permError.Action),
		slog.String("reason", permError.Reason),
	)
}

// ===== MIDDLEWARE AND HELPERS =====

// ContextualLogger wraps operations with automatic logging
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	userID    string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

// SetUser records the caller once it has been resolved
func (cl *ContextualLogger) SetUser(userID string) {
	cl.userID = userID
}

func (cl *ContextualLogger) LogResult(resourceID, resourceType string, err error) {
	duration := time.Since(cl.startTime)
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.userID, resourceID, resourceType, duration, err)

	// Log specific error types with additional context
	if err != nil {
		var validationErrs ValidationErrors
		var permErr *PermissionError
		if errors.As(err, &validationErrs) {
			cl.logger.LogValidationError(cl.ctx, cl.operation, cl.userID, validationErrs)
		} else if errors.As(err, &permErr) {
			cl.logger.LogPermissionDenied(cl.ctx, cl.operation, permErr)
		}
	}
}

// ===== ERROR FORMATTING HELPERS =====

func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var validationErrs ValidationErrors
	var permErr *PermissionError
	switch {
	case errors.As(err, &validationErrs):
		result["type"] = "validation"
		result["count"] = len(validationErrs)

		fields := make([]map[string]interface{}, len(validationErrs))
		for i, validationErr := range validationErrs {
			fields[i] = map[string]interface{}{
				"field":   validationErr.Field,
				"message": validationErr.Message,
				"value":   validationErr.Value,
			}
		}
		result["errors"] = fields
	case errors.As(err, &permErr):
		result["type"] = "permission"
		result["resource"] = permErr.Resource
		result["action"] = permErr.Action
		result["reason"] = permErr.Reason
	case IsNotFound(err):
		result["type"] = "not_found"
	case IsUnauthorized(err):
		result["type"] = "unauthorized"
	case IsForbidden(err):
		result["type"] = "forbidden"
	case IsConflict(err):
		result["type"] = "conflict"
	case IsValidation(err):
		result["type"] = "validation"
	case IsUpstream(err):
		result["type"] = "upstream"
	}

	return result
}
