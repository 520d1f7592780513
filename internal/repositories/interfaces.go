package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	JobID         string                `json:"job_id"`
	AssessmentID  string                `json:"assessment_id"`
	Status        *models.SessionStatus `json:"status"`
	UpdatedBefore *time.Time            `json:"updated_before"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
	SortBy        string                `json:"sort_by"`    // "created_at", "updated_at", "submitted_at"
	SortOrder     string                `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// SessionRepository stores the audit trail of assessment sessions
type SessionRepository interface {
	Create(ctx context.Context, record *models.SessionRecord) error
	Update(ctx context.Context, record *models.SessionRecord) error
	// GetByID returns nil, nil when the record does not exist
	GetByID(ctx context.Context, id string) (*models.SessionRecord, error)
	// GetLatest returns the most recent record for the triple, nil when none exists
	GetLatest(ctx context.Context, userID, jobID, assessmentID string) (*models.SessionRecord, error)
	ListByUser(ctx context.Context, userID string, filters SessionFilters) ([]*models.SessionRecord, int64, error)
	// MarkAbandoned closes unstarted records idle since before and started
	// records whose deadline passed before then
	MarkAbandoned(ctx context.Context, before time.Time) (int64, error)
}
