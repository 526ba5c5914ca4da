package services

import (
	"errors"
	"fmt"
)

// ===== SERVICE ERRORS =====

var (
	ErrTestNotFound    = errors.New("test not found")
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrAccessDenied: caller is not the attempt's owning candidate.
	ErrAccessDenied = errors.New("access denied to attempt")

	// ErrAttemptNotActive: mutation attempted on a completed or expired attempt.
	ErrAttemptNotActive = errors.New("attempt is not active")

	// ErrAttemptExpired: mutation attempted after wall-clock expiry; the
	// attempt has been transitioned to expired as a side effect.
	ErrAttemptExpired = errors.New("attempt time has expired")

	// ErrAlreadyCompleted: start called for a (test, candidate) pair whose
	// attempt is terminal.
	ErrAlreadyCompleted = errors.New("attempt already completed")

	// ErrUnknownQuestion: the oracle cannot resolve a question id. Scoring
	// tolerates it by excluding the answer from both totals.
	ErrUnknownQuestion = errors.New("unknown question")

	// ErrStoreConflict: storage-layer contention that persisted through the
	// internal retry. Never surfaced from Start.
	ErrStoreConflict = errors.New("storage conflict, please retry")

	ErrValidationFailed = errors.New("validation failed")
)

// PermissionError carries context about a rejected access.
type PermissionError struct {
	CandidateID string `json:"candidate_id"`
	AttemptID   uint   `json:"attempt_id"`
	Action      string `json:"action"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: candidate %s cannot %s attempt %d",
		pe.CandidateID, pe.Action, pe.AttemptID)
}

func (pe *PermissionError) Unwrap() error {
	return ErrAccessDenied
}

func NewPermissionError(candidateID string, attemptID uint, action string) *PermissionError {
	return &PermissionError{
		CandidateID: candidateID,
		AttemptID:   attemptID,
		Action:      action,
	}
}

// ===== ERROR PREDICATES =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAttemptNotFound) || errors.Is(err, ErrTestNotFound)
}

func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsStateViolation reports state-machine rejections that map to 409.
func IsStateViolation(err error) bool {
	return errors.Is(err, ErrAttemptNotActive) ||
		errors.Is(err, ErrAttemptExpired) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrStoreConflict)
}
