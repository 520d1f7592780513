package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/repositories"
)

const defaultHistoryLimit = 20

// SessionHistoryRequest filters the caller's past sessions
type SessionHistoryRequest struct {
	JobID        string `form:"job_id" json:"job_id"`
	AssessmentID string `form:"assessment_id" json:"assessment_id"`
	Status       string `form:"status" json:"status" validate:"omitempty,oneof=not_started in_progress submitted closed"`
	Limit        int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
	Offset       int    `form:"offset" json:"offset" validate:"omitempty,min=0"`
	SortBy       string `form:"sort_by" json:"sort_by" validate:"omitempty,oneof=created_at updated_at submitted_at"`
	SortOrder    string `form:"sort_order" json:"sort_order" validate:"omitempty,oneof=asc desc"`
}

type SessionHistory struct {
	Sessions []*models.SessionRecord `json:"sessions"`
	Total    int64                   `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

func (s *sessionService) History(ctx context.Context, token string, req *SessionHistoryRequest) (history *SessionHistory, err error) {
	op := s.logger.WithOperation(ctx, "list_sessions", "")
	defer func() { op.LogResult("", "session", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	op.SetUser(user.ID)

	filters := repositories.SessionFilters{
		JobID:        req.JobID,
		AssessmentID: req.AssessmentID,
		Limit:        req.Limit,
		Offset:       req.Offset,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}
	if filters.Limit == 0 {
		filters.Limit = defaultHistoryLimit
	}
	if req.Status != "" {
		status := models.SessionStatus(req.Status)
		filters.Status = &status
	}

	records, total, err := s.repo.ListByUser(ctx, user.ID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return &SessionHistory{
		Sessions: records,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

// GetRecord returns the audit record of one of the caller's sessions, live or not.
func (s *sessionService) GetRecord(ctx context.Context, token, sessionID string) (*models.SessionRecord, error) {
	user, err := s.users.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}
	if record == nil {
		return nil, ErrSessionNotFound
	}

	if record.UserID != user.ID {
		return nil, NewPermissionError(user.ID, sessionID, "session", "view", "session belongs to another user")
	}
	return record, nil
}
