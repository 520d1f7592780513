package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/session"
	"github.com/SAP-F-2025/assessment-session-service/internal/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	calls [][]models.AnswerPayload
	errs  []error
}

func (r *recordingSubmitter) submit(_ context.Context, answers []models.AnswerPayload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, answers)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "application-1", nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testAssessment(duration int) *models.Assessment {
	return &models.Assessment{
		ID:           "assessment-1",
		Title:        "Go backend",
		Duration:     duration,
		PassingScore: 60,
		Questions: []models.Question{
			{ID: "q1", Text: "Explain channels", Type: models.QuestionTextBased, Weight: 50},
			{ID: "q2", Text: "Pick one", Type: models.QuestionChooseOne, Weight: 25,
				Options: []models.Option{{Value: "a", Text: "A"}, {Value: "b", Text: "B"}}},
			{ID: "q3", Text: "Pick many", Type: models.QuestionChooseMany, Weight: 25,
				Options: []models.Option{{Value: "x", Text: "X"}, {Value: "y", Text: "Y"}, {Value: "z", Text: "Z"}}},
		},
	}
}

func TestNew_InitializesBlankAnswers(t *testing.T) {
	s := session.New(testAssessment(60), (&recordingSubmitter{}).submit, session.WithClock(sessiontest.NewFakeClock()))

	snap := s.Snapshot()
	assert.Len(t, snap.Answers, 3)
	for id, a := range snap.Answers {
		assert.True(t, a.IsBlank(), "answer %s should be blank", id)
	}
	assert.Equal(t, "", snap.Answers["q1"].Value())
	assert.Equal(t, "", snap.Answers["q2"].Value())
	assert.Equal(t, []string{}, snap.Answers["q3"].Value())
	assert.Equal(t, session.NotStarted, snap.State)
	assert.Equal(t, 60*time.Second, snap.Remaining)
}

func TestStart_IsIdempotent(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	s := session.New(testAssessment(60), (&recordingSubmitter{}).submit, session.WithClock(clock))
	defer s.Close()

	assert.True(t, s.Start())
	deadline := s.Snapshot().Deadline

	clock.Advance(10 * time.Second)
	assert.False(t, s.Start())

	assert.Equal(t, deadline, s.Snapshot().Deadline)
	assert.Equal(t, 1, clock.Created())
	assert.Equal(t, 1, clock.Live())
}

func TestTick_CountsDownAndAutoSubmitsOnce(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{}
	ticks := make(chan time.Duration, 10)
	submitted := make(chan session.Result, 2)

	s := session.New(testAssessment(3), sub.submit,
		session.WithClock(clock),
		session.OnTick(func(d time.Duration) { ticks <- d }),
		session.OnSubmitted(func(r session.Result) { submitted <- r }),
	)
	defer s.Close()
	require.True(t, s.Start())

	for _, want := range []time.Duration{2 * time.Second, time.Second, 0} {
		clock.Advance(time.Second)
		assert.Equal(t, want, <-ticks)
	}

	select {
	case r := <-submitted:
		assert.True(t, r.Automatic)
		assert.Equal(t, "application-1", r.ApplicationID)
	case <-time.After(time.Second):
		t.Fatal("expected automatic submission")
	}

	// Further time passing must not produce another tick or submission.
	clock.Advance(time.Second)
	assert.Equal(t, 1, sub.count())
	assert.Equal(t, 0, clock.Live())
	assert.Equal(t, session.Submitted, s.State())
	assert.Equal(t, time.Duration(0), s.Remaining())
}

func TestTwoSecondFreeTextScenario(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{}
	submitted := make(chan session.Result, 1)

	a := &models.Assessment{
		ID:       "short",
		Duration: 2,
		Questions: []models.Question{
			{ID: "essay", Type: models.QuestionTextBased, Weight: 1},
		},
	}
	s := session.New(a, sub.submit, session.WithClock(clock), session.OnSubmitted(func(r session.Result) { submitted <- r }))
	defer s.Close()

	require.True(t, s.Start())
	require.NoError(t, s.SetAnswer("essay", "goroutines are cheap"))

	clock.Advance(time.Second)
	clock.Advance(time.Second)

	select {
	case r := <-submitted:
		assert.True(t, r.Automatic)
	case <-time.After(time.Second):
		t.Fatal("expected automatic submission")
	}

	require.Equal(t, 1, sub.count())
	payload := sub.calls[0]
	require.Len(t, payload, 1)
	require.NotNil(t, payload[0].Text)
	assert.Equal(t, "goroutines are cheap", *payload[0].Text)
}

func TestTwoSecondScenario_UntouchedAnswerIsBlank(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{}
	submitted := make(chan session.Result, 1)

	a := &models.Assessment{
		ID:        "short",
		Duration:  2,
		Questions: []models.Question{{ID: "essay", Type: models.QuestionTextBased}},
	}
	s := session.New(a, sub.submit, session.WithClock(clock), session.OnSubmitted(func(r session.Result) { submitted <- r }))
	defer s.Close()
	require.True(t, s.Start())

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	<-submitted

	require.Equal(t, 1, sub.count())
	require.NotNil(t, sub.calls[0][0].Text)
	assert.Equal(t, "", *sub.calls[0][0].Text)
}

func TestSubmit_ManualAndTimerRaceSubmitsOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		clock := sessiontest.NewFakeClock()
		var calls atomic.Int32
		release := make(chan struct{})
		submit := func(context.Context, []models.AnswerPayload) (string, error) {
			calls.Add(1)
			<-release
			return "application-1", nil
		}

		s := session.New(testAssessment(1), submit, session.WithClock(clock))
		require.True(t, s.Start())

		var wg sync.WaitGroup
		manualErr := make(chan error, 1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), false)
			manualErr <- err
		}()
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()

		require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
		close(release)
		wg.Wait()

		require.Eventually(t, func() bool { return s.State() == session.Submitted }, time.Second, time.Millisecond)
		s.Close()

		assert.Equal(t, int32(1), calls.Load())
		err := <-manualErr
		if err != nil {
			assert.True(t, errors.Is(err, session.ErrSubmissionInProgress) || errors.Is(err, session.ErrAlreadySubmitted), "unexpected error %v", err)
		}
	}
}

func TestSubmit_SecondCallIsRejected(t *testing.T) {
	sub := &recordingSubmitter{}
	s := session.New(testAssessment(60), sub.submit, session.WithClock(sessiontest.NewFakeClock()))
	defer s.Close()
	require.True(t, s.Start())

	res, err := s.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Automatic)

	_, err = s.Submit(context.Background(), false)
	assert.ErrorIs(t, err, session.ErrAlreadySubmitted)
	assert.Equal(t, 1, sub.count())
}

func TestSubmit_BeforeStart(t *testing.T) {
	sub := &recordingSubmitter{}
	s := session.New(testAssessment(60), sub.submit, session.WithClock(sessiontest.NewFakeClock()))

	_, err := s.Submit(context.Background(), false)
	assert.ErrorIs(t, err, session.ErrNotStarted)
	assert.Equal(t, 0, sub.count())
}

func TestSetAnswer_RequiresStart(t *testing.T) {
	s := session.New(testAssessment(60), (&recordingSubmitter{}).submit, session.WithClock(sessiontest.NewFakeClock()))

	assert.ErrorIs(t, s.SetAnswer("q1", "early"), session.ErrNotStarted)
	assert.True(t, s.Snapshot().Answers["q1"].IsBlank())
}

func TestSetAnswer_Semantics(t *testing.T) {
	s := session.New(testAssessment(60), (&recordingSubmitter{}).submit, session.WithClock(sessiontest.NewFakeClock()))
	defer s.Close()
	require.True(t, s.Start())

	require.NoError(t, s.SetAnswer("q1", "first"))
	require.NoError(t, s.SetAnswer("q1", "second"))

	require.NoError(t, s.SetAnswer("q2", "a"))
	require.NoError(t, s.SetAnswer("q2", "b"))

	require.NoError(t, s.SetAnswer("q3", "x"))
	require.NoError(t, s.SetAnswer("q3", "z"))
	require.NoError(t, s.SetAnswer("q3", "x"))

	answers := s.Snapshot().Answers
	assert.Equal(t, "second", answers["q1"].Value())
	assert.Equal(t, "b", answers["q2"].Value())
	assert.Equal(t, []string{"z"}, answers["q3"].Value())

	assert.ErrorIs(t, s.SetAnswer("q2", "nope"), session.ErrInvalidOption)
	assert.ErrorIs(t, s.SetAnswer("missing", "x"), session.ErrUnknownQuestion)
}

func TestSetAnswer_FrozenAfterSubmit(t *testing.T) {
	s := session.New(testAssessment(60), (&recordingSubmitter{}).submit, session.WithClock(sessiontest.NewFakeClock()))
	defer s.Close()
	require.True(t, s.Start())
	require.NoError(t, s.SetAnswer("q1", "final"))

	_, err := s.Submit(context.Background(), false)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetAnswer("q1", "changed"), session.ErrAlreadySubmitted)
	assert.ErrorIs(t, s.SetAnswer("q3", "x"), session.ErrAlreadySubmitted)

	answers := s.Snapshot().Answers
	assert.Equal(t, "final", answers["q1"].Value())
	assert.Equal(t, []string{}, answers["q3"].Value())
}

func TestSetAnswer_AfterDeadline(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{errs: []error{errors.New("portal down")}}
	failed := make(chan bool, 1)
	s := session.New(testAssessment(1), sub.submit, session.WithClock(clock),
		session.OnSubmitFailed(func(_ error, automatic bool) { failed <- automatic }))
	defer s.Close()
	require.True(t, s.Start())

	clock.Advance(time.Second)
	assert.True(t, <-failed)

	assert.ErrorIs(t, s.SetAnswer("q1", "late"), session.ErrTimeExpired)
}

func TestSubmit_ManualFailureRollsBackAndResumesTicking(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{errs: []error{errors.New("portal down")}}
	var failures []bool
	s := session.New(testAssessment(60), sub.submit, session.WithClock(clock),
		session.OnSubmitFailed(func(_ error, automatic bool) { failures = append(failures, automatic) }))
	defer s.Close()
	require.True(t, s.Start())

	_, err := s.Submit(context.Background(), false)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, session.InProgress, snap.State)
	assert.False(t, snap.Submitting)
	assert.Equal(t, 1, snap.FailedSubmissions)
	assert.Equal(t, []bool{false}, failures)
	require.Eventually(t, func() bool { return clock.Live() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, clock.Created())

	// Deadline is unchanged by the retry.
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return s.Remaining() == 50*time.Second }, time.Second, time.Millisecond)

	require.NoError(t, s.SetAnswer("q1", "retrying"))
	res, err := s.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "application-1", res.ApplicationID)
	assert.Equal(t, 2, sub.count())
}

func TestSubmit_AutomaticFailureAllowsManualRetry(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{errs: []error{errors.New("portal down")}}
	failed := make(chan bool, 1)
	s := session.New(testAssessment(1), sub.submit, session.WithClock(clock),
		session.OnSubmitFailed(func(_ error, automatic bool) { failed <- automatic }))
	defer s.Close()
	require.True(t, s.Start())

	clock.Advance(time.Second)
	require.True(t, <-failed)

	assert.Equal(t, session.InProgress, s.State())
	require.Eventually(t, func() bool { return clock.Live() == 0 }, time.Second, time.Millisecond)

	res, err := s.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Automatic)
	assert.Equal(t, 2, sub.count())
}

func TestSubmit_ManualFailurePastDeadlineRetriesAutomatically(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	release := make(chan struct{})
	var calls atomic.Int32
	submit := func(context.Context, []models.AnswerPayload) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "", errors.New("portal down")
		}
		return "application-2", nil
	}
	s := session.New(testAssessment(5), submit, session.WithClock(clock))
	defer s.Close()
	require.True(t, s.Start())

	manualErr := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), false)
		manualErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	// The deadline passes while the manual submission is in flight.
	clock.Advance(10 * time.Second)
	close(release)
	require.Error(t, <-manualErr)
	assert.Equal(t, 2, clock.Created())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return s.State() == session.Submitted }, time.Second, time.Millisecond)

	snap := s.Snapshot()
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.Automatic)
	assert.Equal(t, "application-2", snap.Result.ApplicationID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClose_CancelsTicker(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{}
	var ticks atomic.Int32
	s := session.New(testAssessment(2), sub.submit, session.WithClock(clock),
		session.OnTick(func(time.Duration) { ticks.Add(1) }))
	require.True(t, s.Start())

	s.Close()
	s.Close()

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	clock.Advance(time.Second)

	assert.Equal(t, int32(0), ticks.Load())
	assert.Equal(t, 0, sub.count())
	assert.Equal(t, 0, clock.Live())

	_, err := s.Submit(context.Background(), false)
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.ErrorIs(t, s.SetAnswer("q1", "x"), session.ErrClosed)
	assert.False(t, s.Start())
}

func TestSubmit_PayloadShape(t *testing.T) {
	sub := &recordingSubmitter{}
	s := session.New(testAssessment(60), sub.submit, session.WithClock(sessiontest.NewFakeClock()))
	defer s.Close()
	require.True(t, s.Start())
	require.NoError(t, s.SetAnswer("q1", "text answer"))
	require.NoError(t, s.SetAnswer("q2", "a"))

	res, err := s.Submit(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, res.Answers, 3)
	assert.Equal(t, "q1", res.Answers[0].QuestionID)
	require.NotNil(t, res.Answers[0].Text)
	assert.Equal(t, "text answer", *res.Answers[0].Text)

	assert.Equal(t, "q2", res.Answers[1].QuestionID)
	assert.Nil(t, res.Answers[1].Text)
	assert.Equal(t, []string{"a"}, res.Answers[1].Options)

	assert.Equal(t, "q3", res.Answers[2].QuestionID)
	assert.Equal(t, []string{}, res.Answers[2].Options)
}

func TestStart_ZeroDurationExpiresOnFirstTick(t *testing.T) {
	clock := sessiontest.NewFakeClock()
	sub := &recordingSubmitter{}
	submitted := make(chan session.Result, 1)
	s := session.New(testAssessment(0), sub.submit, session.WithClock(clock), session.OnSubmitted(func(r session.Result) { submitted <- r }))
	defer s.Close()
	require.True(t, s.Start())

	clock.Advance(time.Second)
	r := <-submitted
	assert.True(t, r.Automatic)
	assert.Equal(t, 1, sub.count())
}
