package services

import (
	"context"
	"errors"
	"math"

	"github.com/skillgate/attempt-service/internal/models"
)

// ScoreSummary is the outcome of scoring one answer set.
type ScoreSummary struct {
	EarnedPoints int  `json:"earned_points"`
	TotalPoints  int  `json:"total_points"`
	Percentage   int  `json:"percentage"`
	Passed       bool `json:"passed"`
}

// ScoringService computes the score summary for an answer set. It is a pure
// function of (answers, question definitions, passing threshold): identical
// inputs always produce identical outputs.
type ScoringService interface {
	// Score resolves each answered question through the oracle, fills in
	// correctness on the returned copy of the answers and aggregates points.
	// Answers referencing questions the oracle cannot resolve are excluded
	// from both earned and total points.
	Score(ctx context.Context, answers []models.AnswerRecord, passingScore int) (*ScoreSummary, []models.AnswerRecord, error)
}

type scoringService struct {
	oracle QuestionOracle
}

func NewScoringService(oracle QuestionOracle) ScoringService {
	return &scoringService{oracle: oracle}
}

func (s *scoringService) Score(ctx context.Context, answers []models.AnswerRecord, passingScore int) (*ScoreSummary, []models.AnswerRecord, error) {
	scored := make([]models.AnswerRecord, len(answers))
	copy(scored, answers)

	earned, total := 0, 0
	for i := range scored {
		points, err := s.oracle.Points(ctx, scored[i].QuestionID)
		if err != nil {
			if errors.Is(err, ErrUnknownQuestion) {
				scored[i].IsCorrect = nil
				continue
			}
			return nil, nil, err
		}

		correct, err := s.oracle.CheckAnswer(ctx, scored[i].QuestionID, scored[i].Value)
		if err != nil {
			if errors.Is(err, ErrUnknownQuestion) {
				scored[i].IsCorrect = nil
				continue
			}
			return nil, nil, err
		}

		scored[i].IsCorrect = &correct
		total += points
		if correct {
			earned += points
		}
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(earned) / float64(total) * 100))
	}

	return &ScoreSummary{
		EarnedPoints: earned,
		TotalPoints:  total,
		Percentage:   percentage,
		Passed:       percentage >= passingScore,
	}, scored, nil
}
