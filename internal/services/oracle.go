package services

import (
	"context"
	"fmt"
	"time"

	"github.com/skillgate/attempt-service/internal/cache"
	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
	"github.com/skillgate/attempt-service/internal/utils"
)

// QuestionOracle resolves correctness and point value for a question. It is
// owned by the test-authoring subsystem and consumed read-only here.
type QuestionOracle interface {
	CheckAnswer(ctx context.Context, questionID uint, submitted string) (bool, error)
	Points(ctx context.Context, questionID uint) (int, error)
}

// TestCatalog resolves test definitions (duration, passing score, owner).
type TestCatalog interface {
	Get(ctx context.Context, testID uint) (*models.Test, error)
}

// ===== REPOSITORY-BACKED IMPLEMENTATIONS =====

type repositoryOracle struct {
	questions repositories.QuestionRepository
}

// NewQuestionOracle builds an oracle over the question store. Correctness
// rules live on models.Question so scoring tests share them.
func NewQuestionOracle(questions repositories.QuestionRepository) QuestionOracle {
	return &repositoryOracle{questions: questions}
}

func (o *repositoryOracle) CheckAnswer(ctx context.Context, questionID uint, submitted string) (bool, error) {
	question, err := o.questions.GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrUnknownQuestion
		}
		return false, fmt.Errorf("failed to resolve question %d: %w", questionID, err)
	}
	return question.IsCorrect(submitted), nil
}

func (o *repositoryOracle) Points(ctx context.Context, questionID uint) (int, error) {
	question, err := o.questions.GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrUnknownQuestion
		}
		return 0, fmt.Errorf("failed to resolve question %d: %w", questionID, err)
	}
	return question.Points, nil
}

type repositoryCatalog struct {
	tests repositories.TestRepository
}

// NewTestCatalog builds a catalog straight over the test store.
func NewTestCatalog(tests repositories.TestRepository) TestCatalog {
	return &repositoryCatalog{tests: tests}
}

func (c *repositoryCatalog) Get(ctx context.Context, testID uint) (*models.Test, error) {
	test, err := c.tests.GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to resolve test %d: %w", testID, err)
	}
	return test, nil
}

// ===== CACHED CATALOG =====

type cachedCatalog struct {
	inner  TestCatalog
	cache  cache.CacheService
	ttl    time.Duration
	logger utils.Logger
}

// NewCachedTestCatalog fronts a catalog with a read-through cache. Test
// definitions are consulted on every start and submit, and change rarely.
// Cache failures degrade to the inner catalog, never to an error.
func NewCachedTestCatalog(inner TestCatalog, cacheService cache.CacheService, ttl time.Duration, logger utils.Logger) TestCatalog {
	return &cachedCatalog{
		inner:  inner,
		cache:  cacheService,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *cachedCatalog) Get(ctx context.Context, testID uint) (*models.Test, error) {
	key := fmt.Sprintf("test:%d", testID)

	var cached models.Test
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if err != cache.ErrCacheMiss {
		c.logger.Warn("Test cache read failed", "test_id", testID, "error", err)
	}

	test, err := c.inner.Get(ctx, testID)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, test, c.ttl); err != nil {
		c.logger.Warn("Test cache write failed", "test_id", testID, "error", err)
	}
	return test, nil
}
