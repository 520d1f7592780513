package models

import (
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
	SessionClosed     SessionStatus = "closed"
)

// SessionRecord is the audit trail of one candidate's attempt.
type SessionRecord struct {
	ID           string        `json:"id" gorm:"primaryKey;size:36"`
	JobID        string        `json:"job_id" gorm:"not null;size:255;index:idx_session_lookup"`
	AssessmentID string        `json:"assessment_id" gorm:"not null;size:255;index:idx_session_lookup"`
	UserID       string        `json:"user_id" gorm:"not null;size:255;index:idx_session_lookup"`
	Status       SessionStatus `json:"status" gorm:"not null;size:20;default:not_started;index"`

	StartedAt   *time.Time `json:"started_at"`
	Deadline    *time.Time `json:"deadline"`
	SubmittedAt *time.Time `json:"submitted_at"`

	Automatic         bool    `json:"automatic" gorm:"default:false"`
	ApplicationID     *string `json:"application_id" gorm:"size:255"`
	FailedSubmissions int     `json:"failed_submissions" gorm:"default:0"`
	LastError         *string `json:"last_error" gorm:"type:text"`

	// Answers as sent (or last attempted) to the portal: []AnswerPayload
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SessionRecord) TableName() string {
	return "assessment_sessions"
}
