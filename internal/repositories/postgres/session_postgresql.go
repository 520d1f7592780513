package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, record *models.SessionRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *SessionPostgreSQL) Update(ctx context.Context, record *models.SessionRecord) error {
	return s.db.WithContext(ctx).Save(record).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *SessionPostgreSQL) GetLatest(ctx context.Context, userID, jobID, assessmentID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ? AND assessment_id = ?", userID, jobID, assessmentID).
		Order("created_at DESC").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *SessionPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.SessionRecord, int64, error) {
	var records []*models.SessionRecord
	var total int64

	// apply filter first
	query := s.db.WithContext(ctx).Model(&models.SessionRecord{}).Where("user_id = ?", userID)
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		"created_at", "updated_at", "submitted_at")

	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *SessionPostgreSQL) MarkAbandoned(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.SessionRecord{}).
		Scopes(abandonedBefore(before)).
		Update("status", models.SessionClosed)
	return result.RowsAffected, result.Error
}

// abandonedBefore matches records never started and idle since before, and
// started records whose deadline passed before then. A started record is not
// rewritten while answers change, so its updated_at says nothing about a
// countdown that is still running.
func abandonedBefore(before time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(status = ? AND updated_at < ?) OR (status = ? AND deadline < ?)",
			models.SessionNotStarted, before, models.SessionInProgress, before)
	}
}

func (s *SessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.JobID != "" {
		query = query.Where("job_id = ?", filters.JobID)
	}
	if filters.AssessmentID != "" {
		query = query.Where("assessment_id = ?", filters.AssessmentID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filters.UpdatedBefore)
	}
	return query
}
