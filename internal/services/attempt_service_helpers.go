package services

import (
	"context"
	"fmt"
	"time"

	"github.com/skillgate/attempt-service/internal/events"
	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
)

// getOwned loads the attempt and verifies the caller is its candidate.
// Ownership failures surface before state failures so a stranger cannot
// learn an attempt's lifecycle stage.
func (s *attemptService) getOwned(ctx context.Context, attemptID uint, candidateID, action string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}
	if attempt.CandidateID != candidateID {
		return nil, NewPermissionError(candidateID, attemptID, action)
	}
	return attempt, nil
}

// loadOwnedActive is getOwned plus the mutation preconditions: the deadline
// is enforced first, then terminal states are rejected.
func (s *attemptService) loadOwnedActive(ctx context.Context, attemptID uint, candidateID, action string) (*models.Attempt, error) {
	attempt, err := s.getOwned(ctx, attemptID, candidateID, action)
	if err != nil {
		return nil, err
	}

	attempt, err = s.enforceExpiry(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptExpired {
		return nil, ErrAttemptExpired
	}
	if attempt.IsTerminal() {
		return nil, ErrAttemptNotActive
	}
	return attempt, nil
}

// requireActive re-checks the mutation preconditions against a freshly read
// row inside an update retry.
func (s *attemptService) requireActive(a *models.Attempt, candidateID, action string) error {
	if a.CandidateID != candidateID {
		return NewPermissionError(candidateID, a.ID, action)
	}
	if a.ExpiredBy(s.now()) || a.Status == models.AttemptExpired {
		return ErrAttemptExpired
	}
	if a.IsTerminal() {
		return ErrAttemptNotActive
	}
	return nil
}

// enforceExpiry transitions the attempt to expired when its window has
// passed. There is no background sweeper; every access path funnels through
// here, so a stale in_progress row is corrected the first time anyone
// touches it.
func (s *attemptService) enforceExpiry(ctx context.Context, attempt *models.Attempt) (*models.Attempt, error) {
	now := s.now()
	if !attempt.ExpiredBy(now) {
		return attempt, nil
	}

	expiredAt := *attempt.ExpiresAt
	reason := models.EndReasonTimeExpired
	attempt.Status = models.AttemptExpired
	attempt.EndReason = &reason

	err := s.repo.Attempt().Update(ctx, attempt)
	if repositories.IsConflictError(err) {
		// Someone else transitioned it first; their row is authoritative.
		fresh, rerr := s.repo.Attempt().GetByID(ctx, attempt.ID)
		if rerr != nil {
			return nil, fmt.Errorf("failed to re-read attempt %d after expiry conflict: %w", attempt.ID, rerr)
		}
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to expire attempt %d: %w", attempt.ID, err)
	}

	s.logger.Info("Attempt expired",
		"attempt_id", attempt.ID,
		"expired_at", expiredAt)
	s.publish(events.NewAttemptExpiredEvent(attempt, now))
	return attempt, nil
}

// updateWithRetry persists the attempt, and on a version conflict re-reads
// the row, re-applies the mutation and tries exactly once more. A second
// conflict surfaces as ErrStoreConflict.
func (s *attemptService) updateWithRetry(ctx context.Context, attempt *models.Attempt, apply func(*models.Attempt) error) (*models.Attempt, error) {
	err := s.repo.Attempt().Update(ctx, attempt)
	if err == nil {
		return attempt, nil
	}
	if !repositories.IsConflictError(err) {
		return nil, fmt.Errorf("failed to update attempt %d: %w", attempt.ID, err)
	}

	fresh, err := s.repo.Attempt().GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read attempt %d after conflict: %w", attempt.ID, err)
	}
	if err := apply(fresh); err != nil {
		return nil, err
	}
	if err := s.repo.Attempt().Update(ctx, fresh); err != nil {
		if repositories.IsConflictError(err) {
			s.logger.Warn("Attempt update lost the retry as well", "attempt_id", attempt.ID)
			return nil, ErrStoreConflict
		}
		return nil, fmt.Errorf("failed to update attempt %d: %w", attempt.ID, err)
	}
	return fresh, nil
}

// publish sends the event without blocking the request path. Delivery
// failures are logged and swallowed; lifecycle outcomes never depend on the
// broker being up.
func (s *attemptService) publish(event *events.NotificationEvent) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishNotificationEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish notification event",
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err)
		}
	}()
}

func (s *attemptService) buildResponse(attempt *models.Attempt) *AttemptResponse {
	remaining := 0
	if attempt.Status == models.AttemptInProgress && attempt.ExpiresAt != nil {
		if secs := int(attempt.ExpiresAt.Sub(s.now()).Seconds()); secs > 0 {
			remaining = secs
		}
	}
	return &AttemptResponse{Attempt: attempt, TimeRemainingSeconds: remaining}
}
