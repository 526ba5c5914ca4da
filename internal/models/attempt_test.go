package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttempt_UpsertAnswer(t *testing.T) {
	a := &Attempt{}

	a.UpsertAnswer(AnswerRecord{QuestionID: 1, Value: "a"})
	a.UpsertAnswer(AnswerRecord{QuestionID: 2, Value: "true"})
	assert.Len(t, a.Answers, 2)

	// Re-answering replaces in place; first-insertion order is kept.
	a.UpsertAnswer(AnswerRecord{QuestionID: 1, Value: "b"})
	assert.Len(t, a.Answers, 2)
	assert.Equal(t, uint(1), a.Answers[0].QuestionID)
	assert.Equal(t, "b", a.Answers[0].Value)
	assert.Equal(t, "true", a.Answers[1].Value)
}

func TestAttempt_AnswerFor(t *testing.T) {
	a := &Attempt{}
	a.UpsertAnswer(AnswerRecord{QuestionID: 7, Value: "x"})

	rec := a.AnswerFor(7)
	assert.NotNil(t, rec)
	assert.Equal(t, "x", rec.Value)
	assert.Nil(t, a.AnswerFor(8))
}

func TestAttempt_ExpiredBy(t *testing.T) {
	now := time.Now()
	deadline := now.Add(30 * time.Minute)

	a := &Attempt{Status: AttemptInProgress, ExpiresAt: &deadline}
	assert.False(t, a.ExpiredBy(now))
	assert.False(t, a.ExpiredBy(deadline), "deadline itself is still inside the window")
	assert.True(t, a.ExpiredBy(deadline.Add(time.Second)))

	// Terminal attempts never re-expire.
	a.Status = AttemptCompleted
	assert.False(t, a.ExpiredBy(deadline.Add(time.Hour)))

	// No deadline means no expiry.
	b := &Attempt{Status: AttemptInProgress}
	assert.False(t, b.ExpiredBy(now.Add(1000*time.Hour)))
}

func TestProctoringState_Record(t *testing.T) {
	var s ProctoringState
	at := time.Now()

	s.Record(EventTabSwitch, at)
	s.Record(EventTabSwitch, at.Add(time.Second))
	s.Record(EventFullscreenExit, at.Add(2*time.Second))
	s.Record(EventCopyPaste, at.Add(3*time.Second))

	assert.Equal(t, 2, s.TabSwitches)
	assert.Equal(t, 1, s.FullscreenExits)
	assert.Equal(t, 1, s.CopyPasteAttempts)
	assert.Equal(t, 4, s.TotalWarnings())
	assert.True(t, s.Suspicious)

	assert.Len(t, s.Events, 4)
	assert.Equal(t, EventTabSwitch, s.Events[0].Kind)
	assert.Equal(t, EventCopyPaste, s.Events[3].Kind)
}

func TestProctoringState_RecordKeepsLogOrderedByOccurrence(t *testing.T) {
	var s ProctoringState
	at := time.Now()

	// Clients report occurrence times, and a buffered event can arrive
	// after a later one has already been recorded.
	s.Record(EventTabSwitch, at.Add(2*time.Second))
	s.Record(EventCopyPaste, at)
	s.Record(EventFullscreenExit, at.Add(time.Second))

	require.Len(t, s.Events, 3)
	assert.Equal(t, EventCopyPaste, s.Events[0].Kind)
	assert.Equal(t, EventFullscreenExit, s.Events[1].Kind)
	assert.Equal(t, EventTabSwitch, s.Events[2].Kind)
	for i := 1; i < len(s.Events); i++ {
		assert.False(t, s.Events[i].OccurredAt.Before(s.Events[i-1].OccurredAt))
	}
}

func TestKnownProctoringEvent(t *testing.T) {
	assert.True(t, KnownProctoringEvent(EventTabSwitch))
	assert.True(t, KnownProctoringEvent(EventFullscreenExit))
	assert.True(t, KnownProctoringEvent(EventCopyPaste))
	assert.False(t, KnownProctoringEvent("mouse_leave"))
}
