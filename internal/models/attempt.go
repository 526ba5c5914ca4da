package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

const (
	EndReasonSubmitted   = "submitted"
	EndReasonAutoSubmit  = "auto_submitted"
	EndReasonTimeExpired = "time_expired"
)

// AnswerRecord is one candidate-submitted value for one question. Correctness
// is filled in at scoring time, never taken from the client.
type AnswerRecord struct {
	QuestionID uint      `json:"question_id"`
	Value      string    `json:"value"`
	IsCorrect  *bool     `json:"is_correct,omitempty"`
	TimeSpent  int       `json:"time_spent"` // seconds
	AnsweredAt time.Time `json:"answered_at"`
}

// Attempt is one candidate's session against one test. At most one Attempt
// exists per (test, candidate) pair; the storage layer enforces this.
type Attempt struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TestID      uint   `json:"test_id" gorm:"not null;uniqueIndex:idx_attempts_test_candidate"`
	CandidateID string `json:"candidate_id" gorm:"not null;size:255;uniqueIndex:idx_attempts_test_candidate"`

	Status AttemptStatus `json:"status" gorm:"not null;default:in_progress;index"`

	// Timing. StartedAt/ExpiresAt are nil only for records created before
	// timing could be persisted (crash recovery); Start repairs them.
	StartedAt   *time.Time `json:"started_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"` // seconds, completed_at - started_at

	// Answers, ordered by first insertion per question.
	Answers datatypes.JSONSlice[AnswerRecord] `json:"answers" gorm:"type:jsonb"`

	// Scoring summary, recomputed from answers on submit.
	EarnedPoints  int  `json:"earned_points"`
	TotalPoints   int  `json:"total_points"`
	Percentage    int  `json:"percentage"`
	Passed        bool `json:"passed"`
	AutoSubmitted bool `json:"auto_submitted"`

	EndReason *string `json:"end_reason,omitempty"`

	Proctoring datatypes.JSONType[ProctoringState] `json:"proctoring" gorm:"type:jsonb"`

	// Version guards read-modify-write updates; bumped on every Update.
	Version int `json:"-" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsTerminal reports whether the attempt can no longer be mutated.
func (a *Attempt) IsTerminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptExpired
}

// ExpiredBy reports whether the attempt's wall-clock window has passed at now.
// An attempt with no deadline never expires.
func (a *Attempt) ExpiredBy(now time.Time) bool {
	return a.Status == AttemptInProgress && a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// UpsertAnswer replaces the record for the question if one exists, otherwise
// appends it. Insertion order of first answers is preserved.
func (a *Attempt) UpsertAnswer(rec AnswerRecord) {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == rec.QuestionID {
			a.Answers[i] = rec
			return
		}
	}
	a.Answers = append(a.Answers, rec)
}

// AnswerFor returns the record for the question, or nil.
func (a *Attempt) AnswerFor(questionID uint) *AnswerRecord {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return &a.Answers[i]
		}
	}
	return nil
}
