package models

import "time"

// Test is the definition this engine consumes read-only: duration, passing
// threshold and the owner to notify on forced termination. Authoring lives in
// another subsystem.
type Test struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Title           string  `json:"title" gorm:"not null;size:200" validate:"required,max=200"`
	Description     *string `json:"description" gorm:"type:text"`
	DurationMinutes int     `json:"duration_minutes" gorm:"not null" validate:"required,min=1,max=480"`
	PassingScore    int     `json:"passing_score" gorm:"not null" validate:"min=0,max=100"`
	OwnerID         string  `json:"owner_id" gorm:"not null;size:255;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Test) TableName() string {
	return "tests"
}

// Duration is the attempt window length.
func (t *Test) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}
