package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/assessment-session-service/internal/errors"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/session"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed  = errors.New("validation failed")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrPortalUnavailable = errors.New("portal is unavailable, please retry")

	// Assessment specific errors
	ErrAssessmentNotFound    = errors.New("assessment not found")
	ErrAssessmentUnavailable = errors.New("assessment could not be loaded, please retry")
	ErrAssessmentInvalid     = errors.New("assessment is malformed")
	ErrAssessmentTaken       = errors.New("assessment already submitted for this job")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAccessDenied = errors.New("access denied to session")
	ErrSessionReadOnly     = errors.New("session is a read-only preview")
	ErrSubmissionFailed    = errors.New("failed to submit assessment, please retry")

	// Application specific errors
	ErrApplicationNotFound    = errors.New("application not found")
	ErrApplicationUnavailable = errors.New("application could not be loaded, please retry")

	// User/Permission errors
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidRole             = errors.New("invalid user role")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// Unwrap makes permission errors match ErrInsufficientPermissions.
func (pe *PermissionError) Unwrap() error {
	return ErrInsufficientPermissions
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, portal.ErrUnauthorized)
}

// IsForbidden checks if the caller is known but not allowed to act
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionAccessDenied) ||
		errors.Is(err, ErrSessionReadOnly) ||
		errors.Is(err, ErrInsufficientPermissions) ||
		errors.Is(err, ErrInvalidRole)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, session.ErrUnknownQuestion) ||
		errors.Is(err, session.ErrInvalidOption) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAssessmentTaken) ||
		errors.Is(err, session.ErrAlreadySubmitted) ||
		errors.Is(err, session.ErrSubmissionInProgress) ||
		errors.Is(err, session.ErrNotStarted) ||
		errors.Is(err, session.ErrTimeExpired) ||
		errors.Is(err, session.ErrClosed)
}

// IsUpstream checks if the portal could not serve a request that may succeed on retry
func IsUpstream(err error) bool {
	return errors.Is(err, ErrPortalUnavailable) ||
		errors.Is(err, ErrAssessmentUnavailable) ||
		errors.Is(err, ErrApplicationUnavailable) ||
		errors.Is(err, ErrSubmissionFailed) ||
		errors.Is(err, ErrAssessmentInvalid)
}

// wrapPortalError maps a portal failure onto the service error taxonomy.
func wrapPortalError(err, notFound, unavailable error) error {
	switch {
	case errors.Is(err, portal.ErrNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, portal.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", unavailable, err)
	}
}
