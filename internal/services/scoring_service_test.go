package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories/memory"
)

func newScoringFixture() ScoringService {
	questions := memory.NewQuestionMemory(
		models.Question{ID: 1, TestID: 1, Type: models.MultipleChoice, Points: 2, CorrectOptionID: "b"},
		models.Question{ID: 2, TestID: 1, Type: models.TrueFalse, Points: 1, CorrectAnswer: "true"},
		models.Question{ID: 3, TestID: 1, Type: models.ShortAnswer, Points: 2, CorrectAnswer: "Paris"},
	)
	return NewScoringService(NewQuestionOracle(questions))
}

func TestScoringService_Score(t *testing.T) {
	scorer := newScoringFixture()
	ctx := context.Background()

	answers := []models.AnswerRecord{
		{QuestionID: 1, Value: "b"},
		{QuestionID: 2, Value: "false"},
		{QuestionID: 3, Value: "paris"},
	}

	summary, scored, err := scorer.Score(ctx, answers, 70)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.EarnedPoints)
	assert.Equal(t, 5, summary.TotalPoints)
	assert.Equal(t, 80, summary.Percentage)
	assert.True(t, summary.Passed)

	require.Len(t, scored, 3)
	assert.True(t, *scored[0].IsCorrect)
	assert.False(t, *scored[1].IsCorrect)
	assert.True(t, *scored[2].IsCorrect)

	// The caller's slice is untouched.
	assert.Nil(t, answers[0].IsCorrect)
}

func TestScoringService_Score_Deterministic(t *testing.T) {
	scorer := newScoringFixture()
	ctx := context.Background()

	answers := []models.AnswerRecord{
		{QuestionID: 1, Value: "a"},
		{QuestionID: 3, Value: "Paris"},
	}

	first, _, err := scorer.Score(ctx, answers, 50)
	require.NoError(t, err)
	second, _, err := scorer.Score(ctx, answers, 50)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScoringService_Score_UnknownQuestionExcluded(t *testing.T) {
	scorer := newScoringFixture()
	ctx := context.Background()

	answers := []models.AnswerRecord{
		{QuestionID: 1, Value: "b"},
		{QuestionID: 99, Value: "anything"},
	}

	summary, scored, err := scorer.Score(ctx, answers, 70)
	require.NoError(t, err)

	// The unknown question contributes to neither earned nor total points.
	assert.Equal(t, 2, summary.EarnedPoints)
	assert.Equal(t, 2, summary.TotalPoints)
	assert.Equal(t, 100, summary.Percentage)

	require.Len(t, scored, 2)
	assert.Nil(t, scored[1].IsCorrect)
}

func TestScoringService_Score_NoAnswers(t *testing.T) {
	scorer := newScoringFixture()

	summary, scored, err := scorer.Score(context.Background(), nil, 70)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalPoints)
	assert.Equal(t, 0, summary.Percentage)
	assert.False(t, summary.Passed)
	assert.Empty(t, scored)
}

func TestScoringService_Score_PassBoundary(t *testing.T) {
	scorer := newScoringFixture()
	ctx := context.Background()

	// 3 of 5 points = 60%.
	answers := []models.AnswerRecord{
		{QuestionID: 2, Value: "true"},
		{QuestionID: 3, Value: "Paris"},
		{QuestionID: 1, Value: "a"},
	}

	summary, _, err := scorer.Score(ctx, answers, 60)
	require.NoError(t, err)
	assert.Equal(t, 60, summary.Percentage)
	assert.True(t, summary.Passed, "percentage equal to the passing score passes")

	summary, _, err = scorer.Score(ctx, answers, 61)
	require.NoError(t, err)
	assert.False(t, summary.Passed)
}

func TestScoringService_Score_RoundsPercentage(t *testing.T) {
	questions := memory.NewQuestionMemory(
		models.Question{ID: 1, TestID: 1, Type: models.TrueFalse, Points: 1, CorrectAnswer: "true"},
		models.Question{ID: 2, TestID: 1, Type: models.TrueFalse, Points: 1, CorrectAnswer: "true"},
		models.Question{ID: 3, TestID: 1, Type: models.TrueFalse, Points: 1, CorrectAnswer: "true"},
	)
	scorer := NewScoringService(NewQuestionOracle(questions))

	answers := []models.AnswerRecord{
		{QuestionID: 1, Value: "true"},
		{QuestionID: 2, Value: "true"},
		{QuestionID: 3, Value: "false"},
	}

	// 2/3 rounds to 67, not truncates to 66.
	summary, _, err := scorer.Score(context.Background(), answers, 70)
	require.NoError(t, err)
	assert.Equal(t, 67, summary.Percentage)
}
