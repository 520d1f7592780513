// Package session runs one candidate's timed attempt at one assessment:
// it holds the answer set, counts down against an absolute deadline and
// submits the answers exactly once, either on request or when time runs out.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
)

// TickInterval is the period at which remaining time is recomputed.
const TickInterval = time.Second

type State int

const (
	NotStarted State = iota
	InProgress
	Submitted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Submitted:
		return "submitted"
	}
	return "unknown"
}

var (
	ErrNotStarted           = errors.New("session not started")
	ErrAlreadySubmitted     = errors.New("session already submitted")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrTimeExpired          = errors.New("session time has expired")
	ErrClosed               = errors.New("session closed")
	ErrUnknownQuestion      = errors.New("question is not part of the assessment")
	ErrInvalidOption        = errors.New("value is not an option of the question")
)

// SubmitFunc sends the answers to the application endpoint and returns the
// created application id.
type SubmitFunc func(ctx context.Context, answers []models.AnswerPayload) (string, error)

// Result describes a successful submission.
type Result struct {
	ApplicationID string
	Automatic     bool
	SubmittedAt   time.Time
	Answers       []models.AnswerPayload
}

type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithAutoSubmitTimeout bounds the submission issued when time runs out.
func WithAutoSubmitTimeout(d time.Duration) Option {
	return func(s *Session) { s.autoSubmitTimeout = d }
}

// OnTick is called after every tick with the recomputed remaining time.
func OnTick(fn func(remaining time.Duration)) Option {
	return func(s *Session) { s.onTick = fn }
}

func OnSubmitted(fn func(Result)) Option {
	return func(s *Session) { s.onSubmitted = fn }
}

// OnSubmitFailed is called when a submission fails and the session has been
// rolled back to a retryable state.
func OnSubmitFailed(fn func(err error, automatic bool)) Option {
	return func(s *Session) { s.onSubmitFailed = fn }
}

// Session is safe for concurrent use. Hooks run outside the session lock but
// must not call Close.
type Session struct {
	mu sync.Mutex

	assessment *models.Assessment
	submit     SubmitFunc
	clock      Clock

	answers    AnswerSet
	state      State
	submitting bool
	closed     bool
	deadline   time.Time
	remaining  time.Duration
	failures   int
	result     *Result

	stopTick chan struct{}
	tickers  sync.WaitGroup

	autoSubmitTimeout time.Duration
	onTick            func(time.Duration)
	onSubmitted       func(Result)
	onSubmitFailed    func(error, bool)
}

// New prepares a session with a blank answer for every question. The
// countdown does not run until Start.
func New(assessment *models.Assessment, submit SubmitFunc, opts ...Option) *Session {
	s := &Session{
		assessment: assessment,
		submit:     submit,
		clock:      SystemClock(),
		answers:    NewAnswerSet(assessment.Questions),
		state:      NotStarted,
		remaining:  assessment.DurationOrZero(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Assessment() *models.Assessment {
	return s.assessment
}

// Start establishes the deadline and begins ticking. It reports false when the
// session was already started, submitted or closed.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted || s.closed {
		return false
	}

	now := s.clock.Now()
	s.deadline = now.Add(s.assessment.DurationOrZero())
	s.remaining = clampRemaining(s.deadline.Sub(now))
	s.state = InProgress
	s.startTickingLocked()
	return true
}

// SetAnswer records a response while the session is in progress. Free-text
// and single-choice values replace the previous response; multi-choice
// values toggle membership.
func (s *Session) SetAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}

	q, ok := s.assessment.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Type.IsChoice() && !q.HasOption(value) {
		return ErrInvalidOption
	}

	s.answers.apply(q, value)
	return nil
}

func (s *Session) editableLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.state == Submitted:
		return ErrAlreadySubmitted
	case s.submitting:
		return ErrSubmissionInProgress
	case s.state == NotStarted:
		return ErrNotStarted
	case !s.clock.Now().Before(s.deadline):
		return ErrTimeExpired
	}
	return nil
}

// Submit sends the answer set once. Concurrent or repeated calls after the
// first return ErrSubmissionInProgress or ErrAlreadySubmitted without calling
// the submitter. A failed submission is rolled back so it can be retried.
func (s *Session) Submit(ctx context.Context, automatic bool) (*Result, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.state == Submitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case s.state == NotStarted:
		s.mu.Unlock()
		return nil, ErrNotStarted
	}

	s.submitting = true
	s.stopTickingLocked()
	payload := s.answers.Payload()
	s.mu.Unlock()

	applicationID, err := s.submit(ctx, payload)

	s.mu.Lock()
	s.submitting = false

	if err != nil {
		s.failures++
		now := s.clock.Now()
		s.remaining = clampRemaining(s.deadline.Sub(now))
		// A failed manual attempt resumes the countdown. Past the deadline the
		// next tick queues one automatic retry; a failed automatic attempt
		// waits for a manual one.
		if !automatic && !s.closed {
			s.startTickingLocked()
		}
		hook := s.onSubmitFailed
		s.mu.Unlock()

		if hook != nil {
			hook(err, automatic)
		}
		return nil, err
	}

	result := Result{
		ApplicationID: applicationID,
		Automatic:     automatic,
		SubmittedAt:   s.clock.Now(),
		Answers:       payload,
	}
	s.state = Submitted
	s.result = &result
	hook := s.onSubmitted
	s.mu.Unlock()

	if hook != nil {
		hook(result)
	}
	return &result, nil
}

// Close tears the session down: the ticker is cancelled and Close returns only
// once no tick callback can fire any more. Calling it twice is harmless.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTickingLocked()
	s.mu.Unlock()

	s.tickers.Wait()
}

func (s *Session) startTickingLocked() {
	stop := make(chan struct{})
	s.stopTick = stop
	ticker := s.clock.NewTicker(TickInterval)

	s.tickers.Add(1)
	go s.run(ticker, stop)
}

func (s *Session) stopTickingLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Session) run(ticker Ticker, stop <-chan struct{}) {
	defer s.tickers.Done()
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !s.tick(stop) {
				return
			}
		}
	}
}

// tick recomputes the remaining time and submits automatically once it hits
// zero. It reports whether ticking should continue.
func (s *Session) tick(stop <-chan struct{}) bool {
	s.mu.Lock()
	select {
	case <-stop:
		s.mu.Unlock()
		return false
	default:
	}
	s.remaining = clampRemaining(s.deadline.Sub(s.clock.Now()))
	remaining := s.remaining
	hook := s.onTick
	s.mu.Unlock()

	if hook != nil {
		hook(remaining)
	}
	if remaining > 0 {
		return true
	}

	ctx, cancel := s.autoSubmitContext()
	defer cancel()
	// Losing the race to a manual submit is expected here.
	_, _ = s.Submit(ctx, true)
	return false
}

func (s *Session) autoSubmitContext() (context.Context, context.CancelFunc) {
	if s.autoSubmitTimeout > 0 {
		return context.WithTimeout(context.Background(), s.autoSubmitTimeout)
	}
	return context.WithCancel(context.Background())
}

func clampRemaining(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	State             State
	Submitting        bool
	Closed            bool
	Deadline          time.Time
	Remaining         time.Duration
	Answers           map[string]Answer
	FailedSubmissions int
	Result            *Result
}

func (s *Snapshot) Started() bool {
	return s.State != NotStarted
}

func (s *Snapshot) Submitted() bool {
	return s.State == Submitted
}

// Snapshot copies the current state. While in progress the remaining time is
// recomputed from the deadline rather than taken from the last tick.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.remaining
	if s.state == InProgress && !s.submitting {
		remaining = clampRemaining(s.deadline.Sub(s.clock.Now()))
	}

	snap := Snapshot{
		State:             s.state,
		Submitting:        s.submitting,
		Closed:            s.closed,
		Deadline:          s.deadline,
		Remaining:         remaining,
		Answers:           s.answers.Copy(),
		FailedSubmissions: s.failures,
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining is the value computed by the most recent tick.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}
