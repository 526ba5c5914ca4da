package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/attempt-service/internal/events"
	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
	"github.com/skillgate/attempt-service/internal/repositories/memory"
	"github.com/skillgate/attempt-service/internal/utils"
	"github.com/skillgate/attempt-service/internal/validator"
)

// attemptFixture assembles the service over in-memory repositories with a
// controllable clock.
type attemptFixture struct {
	svc       *attemptService
	repo      *memory.AttemptMemory
	publisher *events.MockEventPublisher

	mu  sync.Mutex
	now time.Time
}

func newAttemptFixture(t *testing.T, threshold int) *attemptFixture {
	t.Helper()

	tests := memory.NewTestMemory(models.Test{
		ID:              1,
		Title:           "Go Fundamentals",
		DurationMinutes: 30,
		PassingScore:    70,
		OwnerID:         "owner-1",
	})
	questions := memory.NewQuestionMemory(
		models.Question{ID: 1, TestID: 1, Type: models.MultipleChoice, Points: 2, CorrectOptionID: "b"},
		models.Question{ID: 2, TestID: 1, Type: models.TrueFalse, Points: 1, CorrectAnswer: "true"},
		models.Question{ID: 3, TestID: 1, Type: models.ShortAnswer, Points: 2, CorrectAnswer: "Paris"},
	)
	attempts := memory.NewAttemptMemory()
	repo := memory.NewRepository(attempts, questions, tests)

	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher := events.NewMockEventPublisher(utils.ToSlogLogger(logger))

	catalog := NewTestCatalog(repo.Test())
	scorer := NewScoringService(NewQuestionOracle(repo.Question()))
	svc := NewAttemptService(repo, catalog, scorer, publisher, logger, validator.New(), threshold).(*attemptService)

	fx := &attemptFixture{
		svc:       svc,
		repo:      attempts,
		publisher: publisher,
		now:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	svc.now = fx.clock
	return fx
}

func (fx *attemptFixture) clock() time.Time {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.now
}

func (fx *attemptFixture) advance(d time.Duration) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	fx.now = fx.now.Add(d)
}

func startAttempt(t *testing.T, fx *attemptFixture, candidateID string) *AttemptResponse {
	t.Helper()
	resp, err := fx.svc.Start(context.Background(), &StartAttemptRequest{TestID: 1, CandidateID: candidateID})
	require.NoError(t, err)
	return resp
}

func TestAttemptService_Start(t *testing.T) {
	fx := newAttemptFixture(t, 5)

	resp := startAttempt(t, fx, "cand-1")

	assert.Equal(t, models.AttemptInProgress, resp.Status)
	assert.False(t, resp.Resumed)
	require.NotNil(t, resp.StartedAt)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, 30*time.Minute, resp.ExpiresAt.Sub(*resp.StartedAt))
	assert.Equal(t, 30*60, resp.TimeRemainingSeconds)
}

func TestAttemptService_Start_Idempotent(t *testing.T) {
	fx := newAttemptFixture(t, 5)

	first := startAttempt(t, fx, "cand-1")
	fx.advance(5 * time.Minute)
	second := startAttempt(t, fx, "cand-1")

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Resumed)
	// The original deadline stands; restarting buys no extra time.
	assert.Equal(t, first.ExpiresAt.Unix(), second.ExpiresAt.Unix())
	assert.Equal(t, 25*60, second.TimeRemainingSeconds)
}

func TestAttemptService_Start_Concurrent(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()

	const racers = 16
	responses := make([]*AttemptResponse, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := fx.svc.Start(ctx, &StartAttemptRequest{TestID: 1, CandidateID: "cand-1"})
			assert.NoError(t, err)
			responses[i] = resp
		}(i)
	}
	wg.Wait()

	for _, resp := range responses {
		require.NotNil(t, resp)
		assert.Equal(t, responses[0].ID, resp.ID, "every racer must see the same attempt")
	}

	_, total, err := fx.repo.GetByTest(ctx, 1, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAttemptService_Start_ConcurrentRepair(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()

	// A row persisted before the process died: created but never stamped
	// with timing. Every racing Start must repair it without surfacing a
	// version conflict to the caller.
	seed := &models.Attempt{
		TestID:      1,
		CandidateID: "cand-1",
		Status:      models.AttemptInProgress,
	}
	require.NoError(t, fx.repo.Create(ctx, seed))

	const racers = 8
	responses := make([]*AttemptResponse, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := fx.svc.Start(ctx, &StartAttemptRequest{TestID: 1, CandidateID: "cand-1"})
			assert.NoError(t, err)
			responses[i] = resp
		}(i)
	}
	wg.Wait()

	for _, resp := range responses {
		require.NotNil(t, resp)
		assert.Equal(t, seed.ID, resp.ID)
		assert.True(t, resp.Resumed)
	}

	stored, err := fx.repo.GetByID(ctx, seed.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, 30*time.Minute, stored.ExpiresAt.Sub(*stored.StartedAt))
}

func TestAttemptService_Start_UnknownTest(t *testing.T) {
	fx := newAttemptFixture(t, 5)

	_, err := fx.svc.Start(context.Background(), &StartAttemptRequest{TestID: 42, CandidateID: "cand-1"})
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestAttemptService_Start_AfterCompletion(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()

	attempt := startAttempt(t, fx, "cand-1")
	_, err := fx.svc.Submit(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)

	_, err = fx.svc.Start(ctx, &StartAttemptRequest{TestID: 1, CandidateID: "cand-1"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAttemptService_Answer(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	err := fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 1, Value: "a", TimeSpent: 12,
	})
	require.NoError(t, err)

	// Last write wins per question.
	err = fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 1, Value: "b", TimeSpent: 20,
	})
	require.NoError(t, err)

	stored, err := fx.repo.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 1)
	assert.Equal(t, "b", stored.Answers[0].Value)
	assert.Nil(t, stored.Answers[0].IsCorrect, "correctness is not evaluated until scoring")
}

func TestAttemptService_Answer_Ownership(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	attempt := startAttempt(t, fx, "cand-1")

	err := fx.svc.Answer(context.Background(), attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-2", QuestionID: 1, Value: "b",
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestAttemptService_Answer_AfterSubmit(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	_, err := fx.svc.Submit(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)

	err = fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 1, Value: "b",
	})
	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestAttemptService_Submit(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	answers := []SubmitAnswerRequest{
		{CandidateID: "cand-1", QuestionID: 1, Value: "b"},
		{CandidateID: "cand-1", QuestionID: 2, Value: "false"},
		{CandidateID: "cand-1", QuestionID: 3, Value: "paris"},
	}
	for i := range answers {
		require.NoError(t, fx.svc.Answer(ctx, attempt.ID, &answers[i]))
	}

	fx.advance(10 * time.Minute)
	result, err := fx.svc.Submit(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)

	assert.Equal(t, 4, result.EarnedPoints)
	assert.Equal(t, 5, result.TotalPoints)
	assert.Equal(t, 80, result.Percentage)
	assert.True(t, result.Passed)
	assert.False(t, result.AutoSubmitted)

	stored, err := fx.repo.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, stored.Status)
	assert.Equal(t, 10*60, stored.TimeSpent)
	require.NotNil(t, stored.EndReason)
	assert.Equal(t, models.EndReasonSubmitted, *stored.EndReason)
	require.NotNil(t, stored.Answers[1].IsCorrect)
	assert.False(t, *stored.Answers[1].IsCorrect)
}

// hookCatalog runs a callback once before delegating, opening a window for
// another writer between an operation's read and its update.
type hookCatalog struct {
	inner TestCatalog
	hook  func()
}

func (c *hookCatalog) Get(ctx context.Context, testID uint) (*models.Test, error) {
	if c.hook != nil {
		h := c.hook
		c.hook = nil
		h()
	}
	return c.inner.Get(ctx, testID)
}

func TestAttemptService_Submit_RacingAnswerIsScored(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	require.NoError(t, fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 1, Value: "b",
	}))

	// A second answer lands between Submit's read and its update; the
	// version conflict must re-score against the fresh row, not drop the
	// acknowledged answer.
	fx.svc.catalog = &hookCatalog{
		inner: fx.svc.catalog,
		hook: func() {
			require.NoError(t, fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
				CandidateID: "cand-1", QuestionID: 2, Value: "true",
			}))
		},
	}

	result, err := fx.svc.Submit(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.EarnedPoints)
	assert.Equal(t, 3, result.TotalPoints)

	stored, err := fx.repo.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 2)
	require.NotNil(t, stored.Answers[1].IsCorrect)
	assert.True(t, *stored.Answers[1].IsCorrect)
}

func TestAttemptService_Submit_Twice(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	first, err := fx.svc.Submit(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)

	_, err = fx.svc.Submit(ctx, attempt.ID, "cand-1")
	assert.ErrorIs(t, err, ErrAttemptNotActive)

	// The recorded score is untouched by the failed resubmit.
	stored, err := fx.repo.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Percentage, stored.Percentage)
}

func TestAttemptService_Expiry(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	require.NoError(t, fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 1, Value: "b",
	}))

	fx.advance(31 * time.Minute)

	// Any access after the deadline transitions the attempt.
	err := fx.svc.Answer(ctx, attempt.ID, &SubmitAnswerRequest{
		CandidateID: "cand-1", QuestionID: 2, Value: "true",
	})
	assert.ErrorIs(t, err, ErrAttemptExpired)

	stored, err := fx.repo.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptExpired, stored.Status)
	require.NotNil(t, stored.EndReason)
	assert.Equal(t, models.EndReasonTimeExpired, *stored.EndReason)
	assert.Len(t, stored.Answers, 1, "the late answer is not recorded")
}

func TestAttemptService_Expiry_OnRead(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	fx.advance(time.Hour)

	resp, err := fx.svc.GetResult(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttemptExpired, resp.Status)
	assert.Equal(t, 0, resp.TimeRemainingSeconds)

	// Expired is terminal: a restart is rejected.
	_, err = fx.svc.Start(ctx, &StartAttemptRequest{TestID: 1, CandidateID: "cand-1"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAttemptService_GetResult(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()
	attempt := startAttempt(t, fx, "cand-1")

	_, err := fx.svc.GetResult(ctx, attempt.ID, "someone-else")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = fx.svc.GetResult(ctx, 999, "cand-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	fx.advance(12 * time.Minute)
	resp, err := fx.svc.GetResult(ctx, attempt.ID, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, resp.Status)
	assert.Equal(t, 18*60, resp.TimeRemainingSeconds)
}

func TestAttemptService_ListByTest(t *testing.T) {
	fx := newAttemptFixture(t, 5)
	ctx := context.Background()

	a := startAttempt(t, fx, "cand-1")
	startAttempt(t, fx, "cand-2")
	_, err := fx.svc.Submit(ctx, a.ID, "cand-1")
	require.NoError(t, err)

	all, total, err := fx.svc.ListByTest(ctx, 1, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	completed, total, err := fx.svc.ListByTest(ctx, 1, repositories.AttemptFilters{Status: models.AttemptCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, completed, 1)
	assert.Equal(t, "cand-1", completed[0].CandidateID)
}
