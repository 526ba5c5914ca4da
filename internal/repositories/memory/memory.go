// Package memory provides in-process repositories honoring the same error
// contract as the postgres implementations. They back the service tests and
// local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"gorm.io/datatypes"

	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
)

type attemptKey struct {
	testID      uint
	candidateID string
}

// cloneAttempt copies the attempt including its slice-backed fields, so a
// record handed out (or taken in) never shares backing arrays with the store.
// Without this, mutating a fetched attempt would write through without an
// Update and without a version bump.
func cloneAttempt(a models.Attempt) models.Attempt {
	out := a
	if a.Answers != nil {
		answers := make([]models.AnswerRecord, len(a.Answers))
		copy(answers, a.Answers)
		out.Answers = answers
	}
	state := a.Proctoring.Data()
	if state.Events != nil {
		events := make([]models.ProctoringLogEntry, len(state.Events))
		copy(events, state.Events)
		state.Events = events
	}
	out.Proctoring = datatypes.NewJSONType(state)
	return out
}

type AttemptMemory struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]models.Attempt
	byKey  map[attemptKey]uint
}

func NewAttemptMemory() *AttemptMemory {
	return &AttemptMemory{
		nextID: 1,
		byID:   make(map[uint]models.Attempt),
		byKey:  make(map[attemptKey]uint),
	}
}

func (m *AttemptMemory) Create(ctx context.Context, attempt *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attemptKey{testID: attempt.TestID, candidateID: attempt.CandidateID}
	if _, exists := m.byKey[key]; exists {
		return repositories.ErrDuplicateAttempt
	}

	attempt.ID = m.nextID
	m.nextID++
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	m.byID[attempt.ID] = cloneAttempt(*attempt)
	m.byKey[key] = attempt.ID
	return nil
}

func (m *AttemptMemory) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneAttempt(stored)
	return &out, nil
}

func (m *AttemptMemory) GetByTestAndCandidate(ctx context.Context, testID uint, candidateID string) (*models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byKey[attemptKey{testID: testID, candidateID: candidateID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneAttempt(m.byID[id])
	return &out, nil
}

func (m *AttemptMemory) Update(ctx context.Context, attempt *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[attempt.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Version != attempt.Version {
		return repositories.ErrVersionConflict
	}
	attempt.Version++
	m.byID[attempt.ID] = cloneAttempt(*attempt)
	return nil
}

func (m *AttemptMemory) GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Attempt
	for id := range m.byID {
		stored := m.byID[id]
		if stored.TestID != testID {
			continue
		}
		if filters.Status != "" && stored.Status != filters.Status {
			continue
		}
		out := cloneAttempt(stored)
		matched = append(matched, &out)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

// QuestionMemory serves fixed question definitions.
type QuestionMemory struct {
	mu        sync.RWMutex
	questions map[uint]models.Question
}

func NewQuestionMemory(questions ...models.Question) *QuestionMemory {
	m := &QuestionMemory{questions: make(map[uint]models.Question)}
	for _, q := range questions {
		m.questions[q.ID] = q
	}
	return m
}

func (m *QuestionMemory) Add(q models.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
}

func (m *QuestionMemory) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := q
	return &out, nil
}

func (m *QuestionMemory) GetByTest(ctx context.Context, testID uint) ([]*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Question
	for id := range m.questions {
		q := m.questions[id]
		if q.TestID == testID {
			copied := q
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TestMemory serves fixed test definitions.
type TestMemory struct {
	mu    sync.RWMutex
	tests map[uint]models.Test
}

func NewTestMemory(tests ...models.Test) *TestMemory {
	m := &TestMemory{tests: make(map[uint]models.Test)}
	for _, t := range tests {
		m.tests[t.ID] = t
	}
	return m
}

func (m *TestMemory) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := t
	return &out, nil
}

// Repo bundles the in-memory repositories.
type Repo struct {
	attempt  *AttemptMemory
	question *QuestionMemory
	test     *TestMemory
}

func NewRepository(attempt *AttemptMemory, question *QuestionMemory, test *TestMemory) repositories.Repository {
	return &Repo{attempt: attempt, question: question, test: test}
}

func (r *Repo) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *Repo) Question() repositories.QuestionRepository { return r.question }
func (r *Repo) Test() repositories.TestRepository         { return r.test }
