package postgres

import (
	"context"
	"errors"

	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type TestPostgreSQL struct {
	db *gorm.DB
}

func NewTestPostgreSQL(db *gorm.DB) repositories.TestRepository {
	return &TestPostgreSQL{db: db}
}

func (t *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).First(&test, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &test, nil
}

// Repo bundles the postgres-backed repositories.
type Repo struct {
	attempt  repositories.AttemptRepository
	question repositories.QuestionRepository
	test     repositories.TestRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repo{
		attempt:  NewAttemptPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
		test:     NewTestPostgreSQL(db),
	}
}

func (r *Repo) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *Repo) Question() repositories.QuestionRepository { return r.question }
func (r *Repo) Test() repositories.TestRepository         { return r.test }
