package services

import (
	"context"
	"fmt"
	"time"

	"github.com/skillgate/attempt-service/internal/events"
	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
	"github.com/skillgate/attempt-service/internal/utils"
	"github.com/skillgate/attempt-service/internal/validator"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartAttemptRequest struct {
	TestID      uint   `json:"test_id" validate:"required"`
	CandidateID string `json:"candidate_id" validate:"required"`
}

type SubmitAnswerRequest struct {
	CandidateID string `json:"candidate_id" validate:"required"`
	QuestionID  uint   `json:"question_id" validate:"required"`
	Value       string `json:"value"`
	TimeSpent   int    `json:"time_spent" validate:"min=0"`
}

type FlagRequest struct {
	CandidateID string                     `json:"candidate_id" validate:"required"`
	Kind        models.ProctoringEventKind `json:"kind" validate:"required,proctoring_event"`
	OccurredAt  *time.Time                 `json:"occurred_at"`
}

type FlagResponse struct {
	TabSwitches       int  `json:"tab_switches"`
	FullscreenExits   int  `json:"fullscreen_exits"`
	CopyPasteAttempts int  `json:"copy_paste_attempts"`
	TotalWarnings     int  `json:"total_warnings"`
	Suspicious        bool `json:"suspicious"`
	AutoSubmitted     bool `json:"auto_submitted"`
}

type SubmitResult struct {
	AttemptID     uint      `json:"attempt_id"`
	EarnedPoints  int       `json:"earned_points"`
	TotalPoints   int       `json:"total_points"`
	Percentage    int       `json:"percentage"`
	Passed        bool      `json:"passed"`
	AutoSubmitted bool      `json:"auto_submitted"`
	CompletedAt   time.Time `json:"completed_at"`
}

type AttemptResponse struct {
	*models.Attempt
	TimeRemainingSeconds int `json:"time_remaining_seconds"`
	// Resumed is true when Start found an attempt already in place instead
	// of creating one.
	Resumed bool `json:"resumed,omitempty"`
}

// ===== SERVICE INTERFACE =====

// AttemptService orchestrates the attempt state machine:
//
//	(absent) --Start--> in_progress
//	in_progress --Answer--> in_progress
//	in_progress --Submit--> completed
//	in_progress --Flag (threshold)--> completed (forced)
//	in_progress --deadline passed, any access--> expired
//
// completed and expired are terminal.
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest) (*AttemptResponse, error)
	Answer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest) error
	Submit(ctx context.Context, attemptID uint, candidateID string) (*SubmitResult, error)
	Flag(ctx context.Context, attemptID uint, req *FlagRequest) (*FlagResponse, error)
	GetResult(ctx context.Context, attemptID uint, candidateID string) (*AttemptResponse, error)
	ListByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*AttemptResponse, int64, error)
}

type attemptService struct {
	repo      repositories.Repository
	catalog   TestCatalog
	scorer    ScoringService
	publisher events.EventPublisher
	logger    utils.Logger
	validator *validator.Validator
	threshold int
	now       func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	catalog TestCatalog,
	scorer ScoringService,
	publisher events.EventPublisher,
	logger utils.Logger,
	v *validator.Validator,
	violationThreshold int,
) AttemptService {
	return &attemptService{
		repo:      repo,
		catalog:   catalog,
		scorer:    scorer,
		publisher: publisher,
		logger:    logger,
		validator: v,
		threshold: violationThreshold,
		now:       time.Now,
	}
}

// ===== START =====

// Start creates the candidate's attempt or resumes the existing one. Exactly
// one attempt per (test, candidate) ever exists: a lost create race is
// resolved by re-reading the winner and is never an error for the caller.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	s.logger.Info("Starting attempt",
		"test_id", req.TestID,
		"candidate_id", req.CandidateID)

	test, err := s.catalog.Get(ctx, req.TestID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Attempt().GetByTestAndCandidate(ctx, req.TestID, req.CandidateID)
	if err == nil {
		return s.resumeExisting(ctx, existing, test)
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up attempt: %w", err)
	}

	now := s.now()
	expires := now.Add(test.Duration())
	attempt := &models.Attempt{
		TestID:      req.TestID,
		CandidateID: req.CandidateID,
		Status:      models.AttemptInProgress,
		StartedAt:   &now,
		ExpiresAt:   &expires,
	}

	err = s.repo.Attempt().Create(ctx, attempt)
	if err == nil {
		s.logger.Info("Attempt created",
			"attempt_id", attempt.ID,
			"test_id", req.TestID,
			"candidate_id", req.CandidateID)
		s.publish(events.NewAttemptStartedEvent(attempt))
		return s.buildResponse(attempt), nil
	}
	if !repositories.IsDuplicateError(err) {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	// A concurrent Start won the create; the conflict is success for us.
	winner, err := s.repo.Attempt().GetByTestAndCandidate(ctx, req.TestID, req.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read attempt after create conflict: %w", err)
	}
	return s.resumeExisting(ctx, winner, test)
}

// resumeExisting applies the start semantics to an attempt that already
// exists: terminal fails, missing timing is repaired, in-progress resumes.
func (s *attemptService) resumeExisting(ctx context.Context, attempt *models.Attempt, test *models.Test) (*AttemptResponse, error) {
	attempt, err := s.enforceExpiry(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, ErrAlreadyCompleted
	}

	if attempt.StartedAt == nil || attempt.ExpiresAt == nil {
		// Crash-recovery: the record exists without timing. Start never
		// surfaces a store conflict, so losing the repair race just means
		// re-reading until some writer's repair (possibly ours) sticks.
		now := s.now()
		expires := now.Add(test.Duration())
		for {
			attempt.StartedAt = &now
			attempt.ExpiresAt = &expires

			err := s.repo.Attempt().Update(ctx, attempt)
			if err == nil {
				break
			}
			if !repositories.IsConflictError(err) {
				return nil, fmt.Errorf("failed to repair attempt %d timing: %w", attempt.ID, err)
			}

			attemptID := attempt.ID
			attempt, err = s.repo.Attempt().GetByID(ctx, attemptID)
			if err != nil {
				return nil, fmt.Errorf("failed to re-read attempt %d after repair conflict: %w", attemptID, err)
			}
			if attempt.IsTerminal() {
				return nil, ErrAlreadyCompleted
			}
			if attempt.StartedAt != nil && attempt.ExpiresAt != nil {
				break
			}
		}
	}

	s.logger.Info("Resuming existing attempt", "attempt_id", attempt.ID)
	resp := s.buildResponse(attempt)
	resp.Resumed = true
	return resp, nil
}

// ===== ANSWER =====

// Answer upserts the candidate's value for one question. Correctness is
// evaluated at scoring time, not here, so a later question edit cannot leave
// a stale verdict behind.
func (s *attemptService) Answer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	attempt, err := s.loadOwnedActive(ctx, attemptID, req.CandidateID, "answer")
	if err != nil {
		return err
	}

	record := models.AnswerRecord{
		QuestionID: req.QuestionID,
		Value:      req.Value,
		TimeSpent:  req.TimeSpent,
		AnsweredAt: s.now(),
	}
	attempt.UpsertAnswer(record)

	_, err = s.updateWithRetry(ctx, attempt, func(a *models.Attempt) error {
		if err := s.requireActive(a, req.CandidateID, "answer"); err != nil {
			return err
		}
		a.UpsertAnswer(record)
		return nil
	})
	return err
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, attemptID uint, candidateID string) (*SubmitResult, error) {
	attempt, err := s.loadOwnedActive(ctx, attemptID, candidateID, "submit")
	if err != nil {
		return nil, err
	}

	return s.finalize(ctx, attempt, false)
}

// finalize runs the single scoring path shared by voluntary submits and
// violation-forced ones; the two differ only in the auto_submitted marker.
// Scoring happens inside the retried mutation so a concurrent Answer that
// wins the version race still ends up in the scored record.
func (s *attemptService) finalize(ctx context.Context, attempt *models.Attempt, auto bool) (*SubmitResult, error) {
	test, err := s.catalog.Get(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	endReason := models.EndReasonSubmitted
	if auto {
		endReason = models.EndReasonAutoSubmit
	}

	scoreAndComplete := func(a *models.Attempt) error {
		if a.IsTerminal() {
			return ErrAttemptNotActive
		}
		summary, scored, err := s.scorer.Score(ctx, a.Answers, test.PassingScore)
		if err != nil {
			return fmt.Errorf("failed to score attempt %d: %w", a.ID, err)
		}
		a.Answers = scored
		a.EarnedPoints = summary.EarnedPoints
		a.TotalPoints = summary.TotalPoints
		a.Percentage = summary.Percentage
		a.Passed = summary.Passed
		a.AutoSubmitted = auto
		a.Status = models.AttemptCompleted
		a.CompletedAt = &completedAt
		a.EndReason = &endReason
		if a.StartedAt != nil {
			spent := int(completedAt.Sub(*a.StartedAt).Seconds())
			if spent < 0 {
				spent = 0
			}
			a.TimeSpent = spent
		}
		return nil
	}
	if err := scoreAndComplete(attempt); err != nil {
		return nil, err
	}

	attempt, err = s.updateWithRetry(ctx, attempt, scoreAndComplete)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt completed",
		"attempt_id", attempt.ID,
		"percentage", attempt.Percentage,
		"passed", attempt.Passed,
		"auto_submitted", auto)

	s.publish(events.NewAttemptSubmittedEvent(attempt))

	return &SubmitResult{
		AttemptID:     attempt.ID,
		EarnedPoints:  attempt.EarnedPoints,
		TotalPoints:   attempt.TotalPoints,
		Percentage:    attempt.Percentage,
		Passed:        attempt.Passed,
		AutoSubmitted: attempt.AutoSubmitted,
		CompletedAt:   completedAt,
	}, nil
}

// ===== GET RESULT =====

// GetResult returns the attempt, transitioning it to expired first when its
// window has passed.
func (s *attemptService) GetResult(ctx context.Context, attemptID uint, candidateID string) (*AttemptResponse, error) {
	attempt, err := s.getOwned(ctx, attemptID, candidateID, "read")
	if err != nil {
		return nil, err
	}

	attempt, err = s.enforceExpiry(ctx, attempt)
	if err != nil {
		return nil, err
	}

	return s.buildResponse(attempt), nil
}

func (s *attemptService) ListByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*AttemptResponse, int64, error) {
	if _, err := s.catalog.Get(ctx, testID); err != nil {
		return nil, 0, err
	}

	attempts, total, err := s.repo.Attempt().GetByTest(ctx, testID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = s.buildResponse(attempt)
	}
	return responses, total, nil
}
