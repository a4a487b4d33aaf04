package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/victornm/edusync/internal/domain"
	"github.com/victornm/edusync/internal/errors"
)

// Memory keeps all records in process memory. It is used for local runs and tests.
type Memory struct {
	mu          sync.RWMutex
	results     map[uuid.UUID]domain.Result
	assessments map[uuid.UUID]domain.Assessment
	courses     map[uuid.UUID]domain.Course
	users       map[uuid.UUID]domain.User
}

func NewMemory() *Memory {
	return &Memory{
		results:     make(map[uuid.UUID]domain.Result),
		assessments: make(map[uuid.UUID]domain.Assessment),
		courses:     make(map[uuid.UUID]domain.Course),
		users:       make(map[uuid.UUID]domain.User),
	}
}

func (m *Memory) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[u.UserID] = u
}

func (m *Memory) PutCourse(c domain.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.courses[c.CourseID] = c
}

// PutAssessment stores a. The Course field is ignored, the course is resolved by CourseID on read.
func (m *Memory) PutAssessment(a domain.Assessment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.Course = nil
	m.assessments[a.AssessmentID] = a
}

func (m *Memory) ListResults(_ context.Context) ([]domain.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]domain.Result, 0, len(m.results))
	for _, r := range m.results {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].AttemptDate.Equal(results[j].AttemptDate) {
			return results[i].AttemptDate.Before(results[j].AttemptDate)
		}
		return results[i].ResultID.String() < results[j].ResultID.String()
	})

	return results, nil
}

func (m *Memory) GetResult(_ context.Context, id uuid.UUID) (*domain.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.results[id]
	if !ok {
		return nil, resultNotFound(id)
	}

	return &r, nil
}

func (m *Memory) InsertResult(_ context.Context, r domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.results[r.ResultID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("result already exists: id=%s", r.ResultID))
	}

	m.results[r.ResultID] = r
	return nil
}

func (m *Memory) UpdateResult(_ context.Context, r domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.results[r.ResultID]; !ok {
		return resultNotFound(r.ResultID)
	}

	m.results[r.ResultID] = r
	return nil
}

func (m *Memory) DeleteResult(_ context.Context, id uuid.UUID) (*domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.results[id]
	if !ok {
		return nil, resultNotFound(id)
	}

	delete(m.results, id)
	return &r, nil
}

// ListResultsByInstructor joins results with their assessment, course and user.
// Results whose related records are missing are skipped.
func (m *Memory) ListResultsByInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.InstructorResult, error) {
	results, err := m.ListResults(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]domain.InstructorResult, 0)
	for _, r := range results {
		a, ok := m.assessments[r.AssessmentID]
		if !ok {
			continue
		}
		c, ok := m.courses[a.CourseID]
		if !ok || c.InstructorID != instructorID {
			continue
		}
		u, ok := m.users[r.UserID]
		if !ok {
			continue
		}

		rows = append(rows, domain.InstructorResult{
			StudentName:     u.Name,
			StudentEmail:    u.Email,
			AssessmentTitle: a.Title,
			CourseTitle:     c.Title,
			Score:           r.Score,
			MaxScore:        a.MaxScore,
			AttemptDate:     r.AttemptDate,
		})
	}

	return rows, nil
}

func (m *Memory) GetAssessment(_ context.Context, id uuid.UUID) (*domain.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assessments[id]
	if !ok {
		return nil, errors.NotFound("assessment not found: id=%s", id)
	}

	if c, ok := m.courses[a.CourseID]; ok {
		a.Course = &c
	}

	return &a, nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, errors.NotFound("user not found: id=%s", id)
	}

	return &u, nil
}
