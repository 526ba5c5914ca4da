package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/skillgate/attempt-service/internal/models"
)

// EventType identifies the outbound notification events this service emits.
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptExpired   EventType = "attempt.expired"

	// EventViolationThreshold is sent to the test owner when accumulated
	// proctoring violations force-terminate an attempt.
	EventViolationThreshold EventType = "attempt.violation_threshold"
)

const eventSource = "attempt-service"

// NotificationEvent is the envelope for all outbound events.
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptStartedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	TestID      uint      `json:"test_id"`
	CandidateID string    `json:"candidate_id"`
	StartedAt   time.Time `json:"started_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID     uint      `json:"attempt_id"`
	TestID        uint      `json:"test_id"`
	CandidateID   string    `json:"candidate_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	EarnedPoints  int       `json:"earned_points"`
	TotalPoints   int       `json:"total_points"`
	Percentage    int       `json:"percentage"`
	Passed        bool      `json:"passed"`
	AutoSubmitted bool      `json:"auto_submitted"`
}

type AttemptExpiredEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	TestID      uint      `json:"test_id"`
	CandidateID string    `json:"candidate_id"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// ViolationThresholdEvent summarizes the violation counters for the test
// owner after a forced submit.
type ViolationThresholdEvent struct {
	AttemptID         uint      `json:"attempt_id"`
	TestID            uint      `json:"test_id"`
	CandidateID       string    `json:"candidate_id"`
	OwnerID           string    `json:"owner_id"`
	TabSwitches       int       `json:"tab_switches"`
	FullscreenExits   int       `json:"fullscreen_exits"`
	CopyPasteAttempts int       `json:"copy_paste_attempts"`
	TotalWarnings     int       `json:"total_warnings"`
	TerminatedAt      time.Time `json:"terminated_at"`
}

// Event factory functions

func NewAttemptStartedEvent(attempt *models.Attempt) *NotificationEvent {
	data := AttemptStartedEvent{
		AttemptID:   attempt.ID,
		TestID:      attempt.TestID,
		CandidateID: attempt.CandidateID,
	}
	if attempt.StartedAt != nil {
		data.StartedAt = *attempt.StartedAt
	}
	if attempt.ExpiresAt != nil {
		data.ExpiresAt = *attempt.ExpiresAt
	}
	return newEvent(EventAttemptStarted, data)
}

func NewAttemptSubmittedEvent(attempt *models.Attempt) *NotificationEvent {
	data := AttemptSubmittedEvent{
		AttemptID:     attempt.ID,
		TestID:        attempt.TestID,
		CandidateID:   attempt.CandidateID,
		EarnedPoints:  attempt.EarnedPoints,
		TotalPoints:   attempt.TotalPoints,
		Percentage:    attempt.Percentage,
		Passed:        attempt.Passed,
		AutoSubmitted: attempt.AutoSubmitted,
	}
	if attempt.CompletedAt != nil {
		data.SubmittedAt = *attempt.CompletedAt
	}
	return newEvent(EventAttemptSubmitted, data)
}

func NewAttemptExpiredEvent(attempt *models.Attempt, expiredAt time.Time) *NotificationEvent {
	return newEvent(EventAttemptExpired, AttemptExpiredEvent{
		AttemptID:   attempt.ID,
		TestID:      attempt.TestID,
		CandidateID: attempt.CandidateID,
		ExpiredAt:   expiredAt,
	})
}

func NewViolationThresholdEvent(attempt *models.Attempt, ownerID string, terminatedAt time.Time) *NotificationEvent {
	state := attempt.Proctoring.Data()
	return newEvent(EventViolationThreshold, ViolationThresholdEvent{
		AttemptID:         attempt.ID,
		TestID:            attempt.TestID,
		CandidateID:       attempt.CandidateID,
		OwnerID:           ownerID,
		TabSwitches:       state.TabSwitches,
		FullscreenExits:   state.FullscreenExits,
		CopyPasteAttempts: state.CopyPasteAttempts,
		TotalWarnings:     state.TotalWarnings(),
		TerminatedAt:      terminatedAt,
	})
}

func newEvent(eventType EventType, data interface{}) *NotificationEvent {
	return &NotificationEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}
