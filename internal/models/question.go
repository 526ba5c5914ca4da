package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	TestID uint         `json:"test_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Points int          `json:"points" gorm:"not null;default:1" validate:"min=0"`

	// Multiple choice
	Options         datatypes.JSONSlice[QuestionOption] `json:"options" gorm:"type:jsonb"`
	CorrectOptionID string                              `json:"-" gorm:"size:64"`

	// True/false and short answer
	CorrectAnswer string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// IsCorrect applies the type-specific correctness rule to a submitted value.
//
// Multiple choice compares against the correct option's identity, not its
// display text. True/false and short answer compare trimmed and
// case-insensitively; short answer is deliberately exact beyond that, with no
// punctuation or whitespace normalization.
func (q *Question) IsCorrect(submitted string) bool {
	switch q.Type {
	case MultipleChoice:
		return submitted == q.CorrectOptionID
	case TrueFalse:
		return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(q.CorrectAnswer))
	case ShortAnswer:
		return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(q.CorrectAnswer))
	}
	return false
}
