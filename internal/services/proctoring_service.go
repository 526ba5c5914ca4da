package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/skillgate/attempt-service/internal/events"
	"github.com/skillgate/attempt-service/internal/models"
)

// Flag records a proctoring violation against the attempt. Crossing the
// configured warning threshold force-submits the attempt through the same
// scoring path as a voluntary submit and notifies the test owner.
//
// Flags racing the end of an attempt are expected from proctoring clients,
// so a flag against a completed or expired attempt succeeds as a no-op.
func (s *attemptService) Flag(ctx context.Context, attemptID uint, req *FlagRequest) (*FlagResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	attempt, err := s.getOwned(ctx, attemptID, req.CandidateID, "flag")
	if err != nil {
		return nil, err
	}

	attempt, err = s.enforceExpiry(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return flagResponse(attempt), nil
	}

	occurredAt := s.now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	record := func(a *models.Attempt) error {
		if a.IsTerminal() {
			return errFlagOnTerminal
		}
		state := a.Proctoring.Data()
		state.Record(req.Kind, occurredAt)
		a.Proctoring = datatypes.NewJSONType(state)
		return nil
	}
	if err := record(attempt); err != nil {
		return flagResponse(attempt), nil
	}

	attempt, err = s.updateWithRetry(ctx, attempt, record)
	if errors.Is(err, errFlagOnTerminal) {
		fresh, rerr := s.repo.Attempt().GetByID(ctx, attemptID)
		if rerr != nil {
			return nil, fmt.Errorf("failed to re-read attempt %d: %w", attemptID, rerr)
		}
		return flagResponse(fresh), nil
	}
	if err != nil {
		return nil, err
	}

	state := attempt.Proctoring.Data()
	s.logger.Warn("Proctoring violation recorded",
		"attempt_id", attempt.ID,
		"kind", req.Kind,
		"total_warnings", state.TotalWarnings())

	if state.TotalWarnings() < s.threshold {
		return flagResponse(attempt), nil
	}

	// Threshold hit: the attempt is scored as it stands right now.
	result, err := s.finalize(ctx, attempt, true)
	if err != nil {
		if errors.Is(err, ErrAttemptNotActive) {
			// Lost the termination race; the flag itself is recorded.
			fresh, rerr := s.repo.Attempt().GetByID(ctx, attemptID)
			if rerr != nil {
				return nil, fmt.Errorf("failed to re-read attempt %d: %w", attemptID, rerr)
			}
			return flagResponse(fresh), nil
		}
		return nil, err
	}

	s.logger.Warn("Attempt terminated by violation threshold",
		"attempt_id", attempt.ID,
		"threshold", s.threshold)

	s.notifyOwner(ctx, attempt, result)

	resp := flagResponse(attempt)
	resp.AutoSubmitted = true
	return resp, nil
}

// notifyOwner tells the test owner about a threshold termination. The owner
// lookup and publish are both best-effort.
func (s *attemptService) notifyOwner(ctx context.Context, attempt *models.Attempt, result *SubmitResult) {
	test, err := s.catalog.Get(ctx, attempt.TestID)
	if err != nil {
		s.logger.Error("Failed to resolve test owner for violation notice",
			"attempt_id", attempt.ID,
			"test_id", attempt.TestID,
			"error", err)
		return
	}
	s.publish(events.NewViolationThresholdEvent(attempt, test.OwnerID, result.CompletedAt))
}

func flagResponse(attempt *models.Attempt) *FlagResponse {
	state := attempt.Proctoring.Data()
	return &FlagResponse{
		TabSwitches:       state.TabSwitches,
		FullscreenExits:   state.FullscreenExits,
		CopyPasteAttempts: state.CopyPasteAttempts,
		TotalWarnings:     state.TotalWarnings(),
		Suspicious:        state.Suspicious,
		AutoSubmitted:     attempt.AutoSubmitted,
	}
}

var errFlagOnTerminal = errors.New("attempt ended while flagging")
