package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/assessment-session-service/internal/cache"
	"github.com/SAP-F-2025/assessment-session-service/internal/events"
	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/portal"
	"github.com/SAP-F-2025/assessment-session-service/internal/repositories"
	"github.com/SAP-F-2025/assessment-session-service/internal/session"
	"github.com/SAP-F-2025/assessment-session-service/internal/validator"
)

const (
	MessageSubmitted        = "Assessment submitted successfully"
	MessageAutoSubmitted    = "Timer ended! Assessment auto-submitted"
	MessageSubmissionFailed = "Failed to submit assessment, please retry"

	// hook side effects outlive the request that triggered them
	hookTimeout = 10 * time.Second
)

type OpenSessionRequest struct {
	JobID        string `json:"job_id" validate:"required,notblank"`
	AssessmentID string `json:"assessment_id" validate:"required,notblank"`
}

type SetAnswerRequest struct {
	// Value is the typed text or the selected option value
	Value *string `json:"value" validate:"required"`
}

// SessionService hosts timed assessment sessions for authenticated portal users
type SessionService interface {
	Open(ctx context.Context, token string, req *OpenSessionRequest) (*SessionView, error)
	Get(ctx context.Context, token, sessionID string) (*SessionView, error)
	Start(ctx context.Context, token, sessionID string) (*SessionView, error)
	SetAnswer(ctx context.Context, token, sessionID, questionID string, req *SetAnswerRequest) (*SessionView, error)
	Submit(ctx context.Context, token, sessionID string) (*SessionView, error)
	Close(ctx context.Context, token, sessionID string) error

	// History and GetRecord read the audit trail of past sessions
	History(ctx context.Context, token string, req *SessionHistoryRequest) (*SessionHistory, error)
	GetRecord(ctx context.Context, token, sessionID string) (*models.SessionRecord, error)

	// Sweep drops sessions idle for longer than the retention window
	Sweep(ctx context.Context) int
	RunSweeper(ctx context.Context, interval time.Duration)
	Shutdown()
}

type SessionServiceConfig struct {
	PreviewQuestions  int
	CacheTTL          time.Duration
	Retention         time.Duration
	AutoSubmitTimeout time.Duration
	Clock             session.Clock
}

type sessionService struct {
	portal    portal.Client
	users     *userResolver
	repo      repositories.SessionRepository
	cache     cache.CacheService
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *ServiceLogger
	config    SessionServiceConfig

	mu       sync.RWMutex
	sessions map[string]*hostedSession
	byOwner  map[string]string
}

// NewSessionService wires the session service. cache may be nil.
func NewSessionService(
	portalClient portal.Client,
	repo repositories.SessionRepository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
	config SessionServiceConfig,
) SessionService {
	if config.Clock == nil {
		config.Clock = session.SystemClock()
	}
	if config.PreviewQuestions < 0 {
		config.PreviewQuestions = 0
	}
	serviceLogger := NewServiceLogger(logger, LogConfig{Service: "assessment-session-service", Component: "sessions"})
	return &sessionService{
		portal:    portalClient,
		users:     newUserResolver(portalClient, cacheService, validator, serviceLogger.Logger()),
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		validator: validator,
		logger:    serviceLogger,
		config:    config,
		sessions:  make(map[string]*hostedSession),
		byOwner:   make(map[string]string),
	}
}

// hostedSession is one live session together with who owns it.
type hostedSession struct {
	id           string
	jobID        string
	assessmentID string
	user         models.User
	preview      bool
	session      *session.Session

	mu           sync.Mutex
	token        string
	lastActivity time.Time
	record       *models.SessionRecord
}

func ownerKey(userID, jobID, assessmentID string) string {
	return userID + "|" + jobID + "|" + assessmentID
}

func (h *hostedSession) ownerKey() string {
	return ownerKey(h.user.ID, h.jobID, h.assessmentID)
}

func (h *hostedSession) ref() events.SessionRef {
	return events.SessionRef{
		SessionID:    h.id,
		JobID:        h.jobID,
		AssessmentID: h.assessmentID,
		UserID:       h.user.ID,
	}
}

// touch refreshes the activity time and the token used for automatic submission.
func (h *hostedSession) touch(token string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if token != "" {
		h.token = token
	}
	h.lastActivity = now
}

func (h *hostedSession) currentToken() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

func (h *hostedSession) idleSince() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastActivity
}

func (h *hostedSession) lastError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.record == nil || h.record.LastError == nil {
		return ""
	}
	return *h.record.LastError
}

// ===== OPERATIONS =====

func (s *sessionService) Open(ctx context.Context, token string, req *OpenSessionRequest) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "open_session", "")
	var sessionID string
	defer func() { op.LogResult(sessionID, "session", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	op.SetUser(user.ID)

	if existing := s.lookupOwner(ownerKey(user.ID, req.JobID, req.AssessmentID)); existing != nil {
		sessionID = existing.id
		existing.touch(token, s.config.Clock.Now())
		return s.view(existing), nil
	}

	if user.IsApplicant() {
		if err := s.ensureNotTaken(ctx, user.ID, req.JobID, req.AssessmentID); err != nil {
			return nil, err
		}
	}

	assessment, err := s.loadAssessment(ctx, token, req.JobID, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	now := s.config.Clock.Now()
	entry := &hostedSession{
		id:           uuid.NewString(),
		jobID:        req.JobID,
		assessmentID: req.AssessmentID,
		user:         *user,
		preview:      !user.IsApplicant(),
		token:        token,
		lastActivity: now,
	}
	if !entry.preview {
		entry.record = &models.SessionRecord{
			ID:           entry.id,
			JobID:        entry.jobID,
			AssessmentID: entry.assessmentID,
			UserID:       user.ID,
			Status:       models.SessionNotStarted,
		}
	}
	entry.session = session.New(assessment, s.submitter(entry),
		session.WithClock(s.config.Clock),
		session.WithAutoSubmitTimeout(s.config.AutoSubmitTimeout),
		session.OnSubmitted(func(r session.Result) { s.onSubmitted(entry, r) }),
		session.OnSubmitFailed(func(err error, automatic bool) { s.onSubmitFailed(entry, err, automatic) }),
	)

	// A concurrent Open for the same owner may have won; its answers are kept.
	s.mu.Lock()
	if id, ok := s.byOwner[entry.ownerKey()]; ok {
		winner := s.sessions[id]
		s.mu.Unlock()
		sessionID = winner.id
		return s.view(winner), nil
	}
	s.sessions[entry.id] = entry
	s.byOwner[entry.ownerKey()] = entry.id
	s.mu.Unlock()
	sessionID = entry.id

	s.createRecord(ctx, entry)

	s.publish(ctx, events.NewSessionOpenedEvent(entry.ref(), assessment.Title, len(assessment.Questions), assessment.Duration))
	return s.view(entry), nil
}

func (s *sessionService) Get(ctx context.Context, token, sessionID string) (*SessionView, error) {
	entry, _, err := s.authorize(ctx, token, sessionID, "view")
	if err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

func (s *sessionService) Start(ctx context.Context, token, sessionID string) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "start_session", "")
	defer func() { op.LogResult(sessionID, "session", err) }()

	entry, user, err := s.authorize(ctx, token, sessionID, "start")
	if err != nil {
		return nil, err
	}
	op.SetUser(user.ID)
	if entry.preview {
		return nil, ErrSessionReadOnly
	}

	// Starting twice is the same as starting once.
	if !entry.session.Start() {
		return s.view(entry), nil
	}

	snap := entry.session.Snapshot()
	startedAt := snap.Deadline.Add(-entry.session.Assessment().DurationOrZero())
	s.updateRecord(ctx, entry, func(r *models.SessionRecord) {
		r.Status = models.SessionInProgress
		r.StartedAt = &startedAt
		deadline := snap.Deadline
		r.Deadline = &deadline
	})
	s.publish(ctx, events.NewSessionStartedEvent(entry.ref(), startedAt, snap.Deadline))

	return s.view(entry), nil
}

func (s *sessionService) SetAnswer(ctx context.Context, token, sessionID, questionID string, req *SetAnswerRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	entry, _, err := s.authorize(ctx, token, sessionID, "answer")
	if err != nil {
		return nil, err
	}
	if entry.preview {
		return nil, ErrSessionReadOnly
	}

	if err := entry.session.SetAnswer(questionID, *req.Value); err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

func (s *sessionService) Submit(ctx context.Context, token, sessionID string) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "submit_session", "")
	defer func() { op.LogResult(sessionID, "session", err) }()

	entry, user, err := s.authorize(ctx, token, sessionID, "submit")
	if err != nil {
		return nil, err
	}
	op.SetUser(user.ID)
	if entry.preview {
		return nil, ErrSessionReadOnly
	}

	// The candidate leaving the page must not cancel an in-flight submission.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout())
	defer cancel()

	if _, err := entry.session.Submit(submitCtx, false); err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, wrapPortalError(err, ErrAssessmentNotFound, ErrSubmissionFailed)
	}
	return s.view(entry), nil
}

func (s *sessionService) Close(ctx context.Context, token, sessionID string) (err error) {
	op := s.logger.WithOperation(ctx, "close_session", "")
	defer func() { op.LogResult(sessionID, "session", err) }()

	entry, user, err := s.authorize(ctx, token, sessionID, "close")
	if err != nil {
		return err
	}
	op.SetUser(user.ID)

	s.mu.Lock()
	s.remove(entry)
	s.mu.Unlock()

	s.teardown(ctx, entry)
	return nil
}

// ===== SWEEPER =====

func (s *sessionService) Sweep(ctx context.Context) int {
	now := s.config.Clock.Now()

	s.mu.Lock()
	var expired []*hostedSession
	for _, entry := range s.sessions {
		if s.expired(entry, now) {
			expired = append(expired, entry)
		}
	}
	for _, entry := range expired {
		s.remove(entry)
	}
	s.mu.Unlock()

	for _, entry := range expired {
		s.teardown(ctx, entry)
	}

	if s.config.Retention > 0 {
		abandoned, err := s.repo.MarkAbandoned(ctx, now.Add(-s.config.Retention))
		if err != nil {
			s.logger.Logger().Error("Failed to close abandoned session records", "error", err)
		} else if abandoned > 0 {
			s.logger.Logger().Info("Closed abandoned session records", "count", abandoned)
		}
	}

	if len(expired) > 0 {
		s.logger.Logger().Info("Swept idle sessions", "count", len(expired))
	}
	return len(expired)
}

// expired reports whether a session can be dropped. A running countdown is
// never interrupted.
func (s *sessionService) expired(entry *hostedSession, now time.Time) bool {
	if s.config.Retention <= 0 || now.Sub(entry.idleSince()) < s.config.Retention {
		return false
	}
	snap := entry.session.Snapshot()
	if snap.Submitting {
		return false
	}
	return !(snap.State == session.InProgress && snap.Remaining > 0)
}

func (s *sessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Shutdown closes every live session and waits for their tickers to stop.
func (s *sessionService) Shutdown() {
	s.mu.Lock()
	entries := make([]*hostedSession, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.sessions = make(map[string]*hostedSession)
	s.byOwner = make(map[string]string)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.session.Close()
	}
}

// ===== HELPERS =====

// remove must be called with s.mu held.
func (s *sessionService) remove(entry *hostedSession) {
	delete(s.sessions, entry.id)
	if s.byOwner[entry.ownerKey()] == entry.id {
		delete(s.byOwner, entry.ownerKey())
	}
}

// teardown stops the session and records how it ended.
func (s *sessionService) teardown(ctx context.Context, entry *hostedSession) {
	entry.session.Close()

	snap := entry.session.Snapshot()
	if !snap.Submitted() {
		s.updateRecord(ctx, entry, func(r *models.SessionRecord) {
			r.Status = models.SessionClosed
		})
	}
	s.publish(ctx, events.NewSessionClosedEvent(entry.ref(), snap.State.String()))
}

func (s *sessionService) lookupOwner(key string) *hostedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byOwner[key]; ok {
		return s.sessions[id]
	}
	return nil
}

// authorize resolves the caller and checks that they own the session.
func (s *sessionService) authorize(ctx context.Context, token, sessionID, action string) (*hostedSession, *models.User, error) {
	user, err := s.users.resolve(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	if entry.user.ID != user.ID {
		return nil, nil, NewPermissionError(user.ID, sessionID, "session", action, "session belongs to another user")
	}

	entry.touch(token, s.config.Clock.Now())
	return entry, user, nil
}

// loadAssessment fetches the assessment through the cache and strips any
// correct options before it reaches a session.
func (s *sessionService) loadAssessment(ctx context.Context, token, jobID, assessmentID string) (*models.Assessment, error) {
	key := cache.AssessmentKey(jobID, assessmentID)
	if s.cache != nil {
		var cached models.Assessment
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Logger().Warn("Assessment cache unavailable", "key", key, "error", err)
		}
	}

	assessment, err := s.portal.GetAssessment(ctx, token, jobID, assessmentID)
	if err != nil {
		return nil, wrapPortalError(err, ErrAssessmentNotFound, ErrAssessmentUnavailable)
	}
	if err := s.validator.Assessment().ValidateAssessment(assessment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssessmentInvalid, err)
	}

	stripped := assessment.WithoutCorrectOptions()
	if s.cache != nil && s.config.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, stripped, s.config.CacheTTL); err != nil {
			s.logger.Logger().Warn("Failed to cache assessment", "key", key, "error", err)
		}
	}
	return stripped, nil
}

// ensureNotTaken rejects a new session when the audit trail already holds a
// submitted attempt for the same job and assessment.
func (s *sessionService) ensureNotTaken(ctx context.Context, userID, jobID, assessmentID string) error {
	latest, err := s.repo.GetLatest(ctx, userID, jobID, assessmentID)
	if err != nil {
		// an unreadable history must not allow a retake
		return fmt.Errorf("%w: failed to read session history: %v", ErrAssessmentUnavailable, err)
	}
	if latest != nil && latest.Status == models.SessionSubmitted {
		return ErrAssessmentTaken
	}
	return nil
}

func (s *sessionService) submitter(entry *hostedSession) session.SubmitFunc {
	return func(ctx context.Context, answers []models.AnswerPayload) (string, error) {
		resp, err := s.portal.SubmitApplication(ctx, entry.currentToken(), &models.SubmitApplicationRequest{
			JobID:        entry.jobID,
			AssessmentID: entry.assessmentID,
			UserID:       entry.user.ID,
			Answers:      answers,
		})
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	}
}

func (s *sessionService) submitTimeout() time.Duration {
	if s.config.AutoSubmitTimeout > 0 {
		return s.config.AutoSubmitTimeout
	}
	return 30 * time.Second
}

func (s *sessionService) onSubmitted(entry *hostedSession, result session.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	entry.touch("", s.config.Clock.Now())
	s.updateRecord(ctx, entry, func(r *models.SessionRecord) {
		submittedAt := result.SubmittedAt
		applicationID := result.ApplicationID
		r.Status = models.SessionSubmitted
		r.SubmittedAt = &submittedAt
		r.Automatic = result.Automatic
		r.ApplicationID = &applicationID
		r.LastError = nil
		r.Answers = marshalAnswers(result.Answers)
	})
	s.publish(ctx, events.NewSessionSubmittedEvent(entry.ref(), result.ApplicationID, result.Automatic,
		result.SubmittedAt, len(result.Answers)))

	s.logger.Logger().Info("Assessment submitted",
		"session_id", entry.id,
		"application_id", result.ApplicationID,
		"automatic", result.Automatic)
}

func (s *sessionService) onSubmitFailed(entry *hostedSession, err error, automatic bool) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	failures := entry.session.Snapshot().FailedSubmissions
	s.updateRecord(ctx, entry, func(r *models.SessionRecord) {
		message := err.Error()
		r.FailedSubmissions = failures
		r.LastError = &message
	})
	s.publish(ctx, events.NewSessionSubmissionFailedEvent(entry.ref(), automatic, err, failures))

	if s.cache != nil {
		switch {
		// the job or assessment is gone upstream; later opens must refetch
		case errors.Is(err, portal.ErrNotFound):
			if cacheErr := s.cache.DeletePattern(ctx, cache.AssessmentPattern(entry.jobID)); cacheErr != nil {
				s.logger.Logger().Warn("Failed to evict cached assessments", "job_id", entry.jobID, "error", cacheErr)
			}
		// the token was revoked; the cached user must not outlive it
		case errors.Is(err, portal.ErrUnauthorized):
			if cacheErr := s.cache.Delete(ctx, cache.UserKey(entry.currentToken())); cacheErr != nil {
				s.logger.Logger().Warn("Failed to evict cached user", "error", cacheErr)
			}
		}
	}

	s.logger.Logger().Warn("Assessment submission failed",
		"session_id", entry.id,
		"automatic", automatic,
		"failed_submissions", failures,
		"error", FormatError(err))
}

func (s *sessionService) createRecord(ctx context.Context, entry *hostedSession) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.record == nil {
		return
	}
	if err := s.repo.Create(ctx, entry.record); err != nil {
		s.logger.Logger().Error("Failed to persist session record", "session_id", entry.id, "error", err)
	}
}

// updateRecord mutates and saves the audit record; previews have none.
func (s *sessionService) updateRecord(ctx context.Context, entry *hostedSession, mutate func(*models.SessionRecord)) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.record == nil {
		return
	}
	mutate(entry.record)
	if err := s.repo.Update(ctx, entry.record); err != nil {
		s.logger.Logger().Error("Failed to update session record", "session_id", entry.id, "error", err)
	}
}

func (s *sessionService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Logger().Warn("Failed to publish session event", "event_type", event.Type, "error", err)
	}
}

func marshalAnswers(answers []models.AnswerPayload) []byte {
	data, err := json.Marshal(answers)
	if err != nil {
		return nil
	}
	return data
}
