package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the lifecycle events of an assessment session
type EventType string

const (
	EventSessionOpened           EventType = "session.opened"
	EventSessionStarted          EventType = "session.started"
	EventSessionSubmitted        EventType = "session.submitted"
	EventSessionAutoSubmitted    EventType = "session.auto_submitted"
	EventSessionSubmissionFailed EventType = "session.submission_failed"
	EventSessionClosed           EventType = "session.closed"
)

const (
	eventSource  = "assessment-session-service"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for every session event
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	SessionID string                 `json:"session_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SessionRef identifies the session an event belongs to
type SessionRef struct {
	SessionID    string `json:"session_id"`
	JobID        string `json:"job_id"`
	AssessmentID string `json:"assessment_id"`
	UserID       string `json:"user_id"`
}

type SessionOpenedEvent struct {
	SessionRef
	AssessmentTitle string `json:"assessment_title"`
	QuestionsCount  int    `json:"questions_count"`
	DurationSeconds int    `json:"duration_seconds"`
}

type SessionStartedEvent struct {
	SessionRef
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

type SessionSubmittedEvent struct {
	SessionRef
	ApplicationID string    `json:"application_id"`
	Automatic     bool      `json:"automatic"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AnswersCount  int       `json:"answers_count"`
}

type SessionSubmissionFailedEvent struct {
	SessionRef
	Automatic         bool   `json:"automatic"`
	Error             string `json:"error"`
	FailedSubmissions int    `json:"failed_submissions"`
}

type SessionClosedEvent struct {
	SessionRef
	Status string `json:"status"`
}

func newSessionEvent(eventType EventType, sessionID string, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		SessionID: sessionID,
		Data:      data,
	}
}

// Event factory functions

func NewSessionOpenedEvent(ref SessionRef, title string, questions, durationSeconds int) *SessionEvent {
	return newSessionEvent(EventSessionOpened, ref.SessionID, SessionOpenedEvent{
		SessionRef:      ref,
		AssessmentTitle: title,
		QuestionsCount:  questions,
		DurationSeconds: durationSeconds,
	})
}

func NewSessionStartedEvent(ref SessionRef, startedAt, deadline time.Time) *SessionEvent {
	return newSessionEvent(EventSessionStarted, ref.SessionID, SessionStartedEvent{
		SessionRef: ref,
		StartedAt:  startedAt,
		Deadline:   deadline,
	})
}

// NewSessionSubmittedEvent distinguishes time-expired submissions by type.
func NewSessionSubmittedEvent(ref SessionRef, applicationID string, automatic bool, submittedAt time.Time, answers int) *SessionEvent {
	eventType := EventSessionSubmitted
	if automatic {
		eventType = EventSessionAutoSubmitted
	}
	return newSessionEvent(eventType, ref.SessionID, SessionSubmittedEvent{
		SessionRef:    ref,
		ApplicationID: applicationID,
		Automatic:     automatic,
		SubmittedAt:   submittedAt,
		AnswersCount:  answers,
	})
}

func NewSessionSubmissionFailedEvent(ref SessionRef, automatic bool, err error, failures int) *SessionEvent {
	return newSessionEvent(EventSessionSubmissionFailed, ref.SessionID, SessionSubmissionFailedEvent{
		SessionRef:        ref,
		Automatic:         automatic,
		Error:             err.Error(),
		FailedSubmissions: failures,
	})
}

func NewSessionClosedEvent(ref SessionRef, status string) *SessionEvent {
	return newSessionEvent(EventSessionClosed, ref.SessionID, SessionClosedEvent{
		SessionRef: ref,
		Status:     status,
	})
}
