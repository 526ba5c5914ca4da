package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/skillgate/attempt-service/internal/models"
)

// ===== STORAGE ERRORS =====

var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateAttempt reports a violation of the (test_id, candidate_id)
	// uniqueness constraint. Callers racing on create must treat it as "the
	// other writer won" and re-read.
	ErrDuplicateAttempt = errors.New("attempt already exists for test and candidate")

	// ErrVersionConflict reports a lost optimistic update; the caller should
	// re-read and reapply.
	ErrVersionConflict = errors.New("attempt was modified concurrently")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicateAttempt)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// ===== FILTERS =====

type AttemptFilters struct {
	Status    models.AttemptStatus `json:"status" form:"status"`
	DateFrom  *time.Time           `json:"date_from" form:"date_from"`
	DateTo    *time.Time           `json:"date_to" form:"date_to"`
	Limit     int                  `json:"limit" form:"limit"`
	Offset    int                  `json:"offset" form:"offset"`
	SortBy    string               `json:"sort_by" form:"sort_by"`       // "created_at", "percentage"
	SortOrder string               `json:"sort_order" form:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// AttemptRepository is the durable store for attempt records. It is the only
// place allowed to enforce the (test, candidate) uniqueness invariant, since
// application-level checks are unsafe under concurrent starts.
type AttemptRepository interface {
	// Create persists a new attempt, reporting ErrDuplicateAttempt when a
	// record for the same (test, candidate) already exists.
	Create(ctx context.Context, attempt *models.Attempt) error

	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByTestAndCandidate(ctx context.Context, testID uint, candidateID string) (*models.Attempt, error)

	// Update applies a read-modify-write guarded by the attempt's version,
	// reporting ErrVersionConflict when the stored version moved on.
	Update(ctx context.Context, attempt *models.Attempt) error

	// GetByTest lists attempts for reporting/export, newest first by default.
	GetByTest(ctx context.Context, testID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)
}

// QuestionRepository resolves question definitions. Read-only here; authoring
// belongs to the test-authoring subsystem.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByTest(ctx context.Context, testID uint) ([]*models.Question, error)
}

// TestRepository resolves test definitions. Read-only here.
type TestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Test, error)
}

// Repository aggregates the per-entity repositories behind one handle.
type Repository interface {
	Attempt() AttemptRepository
	Question() QuestionRepository
	Test() TestRepository
}
