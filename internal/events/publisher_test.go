package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = SessionRef{SessionID: "s-1", JobID: "job-1", AssessmentID: "asm-1", UserID: "u1"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSessionSubmittedEvent_Type(t *testing.T) {
	manual := NewSessionSubmittedEvent(testRef, "app-1", false, time.Now(), 3)
	auto := NewSessionSubmittedEvent(testRef, "app-1", true, time.Now(), 3)

	assert.Equal(t, EventSessionSubmitted, manual.Type)
	assert.Equal(t, EventSessionAutoSubmitted, auto.Type)
	assert.NotEqual(t, manual.ID, auto.ID)
	assert.Equal(t, "s-1", auto.SessionID)
	assert.Equal(t, eventSource, auto.Source)
	assert.Equal(t, eventVersion, auto.Version)
}

func TestNewSessionSubmissionFailedEvent(t *testing.T) {
	event := NewSessionSubmissionFailedEvent(testRef, true, errors.New("portal down"), 2)

	data, ok := event.Data.(SessionSubmissionFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "portal down", data.Error)
	assert.Equal(t, 2, data.FailedSubmissions)
	assert.True(t, data.Automatic)
	assert.Equal(t, testRef, data.SessionRef)
}

func TestInMemoryEventPublisher_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher, pubSub := NewInMemoryEventPublisher("sessions", discardLogger())
	defer publisher.Close()

	messages, err := pubSub.Subscribe(ctx, "sessions")
	require.NoError(t, err)

	event := NewSessionOpenedEvent(testRef, "Backend engineer", 5, 600)
	require.NoError(t, publisher.PublishSessionEvent(ctx, event))

	select {
	case msg := <-messages:
		defer msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventSessionOpened), msg.Metadata.Get("event_type"))
		assert.Equal(t, "s-1", msg.Metadata.Get("session_id"))

		var decoded struct {
			Type EventType          `json:"type"`
			Data SessionOpenedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventSessionOpened, decoded.Type)
		assert.Equal(t, 5, decoded.Data.QuestionsCount)
		assert.Equal(t, "job-1", decoded.Data.JobID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestLogSessionEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher, pubSub := NewInMemoryEventPublisher("sessions", discardLogger())
	defer publisher.Close()

	require.NoError(t, LogSessionEvents(ctx, pubSub, "sessions", discardLogger()))

	for i := 0; i < 3; i++ {
		require.NoError(t, publisher.PublishSessionEvent(ctx, NewSessionClosedEvent(testRef, "closed")))
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(discardLogger())
	ctx := context.Background()

	require.NoError(t, mock.PublishSessionEvent(ctx, NewSessionStartedEvent(testRef, time.Now(), time.Now().Add(time.Minute))))
	require.NoError(t, mock.PublishSessionEvent(ctx, NewSessionClosedEvent(testRef, "closed")))
	assert.Equal(t, []EventType{EventSessionStarted, EventSessionClosed}, mock.EventTypes())
	assert.Len(t, mock.GetPublishedEvents(), 2)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())

	mock.Err = errors.New("broker down")
	assert.Error(t, mock.PublishSessionEvent(ctx, NewSessionClosedEvent(testRef, "closed")))
	assert.Empty(t, mock.EventTypes())
}
