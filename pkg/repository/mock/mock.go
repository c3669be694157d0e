// Package mock provides in-memory repositories for tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/workflow"
	"github.com/garnizeh/hireflow/pkg/repository"
)

var _ repository.JobRepo = (*Store)(nil)
var _ repository.ApplicationRepo = (*Store)(nil)
var _ repository.QuestionRepo = (*Store)(nil)
var _ repository.TaskRepo = (*Store)(nil)

// Store keeps jobs, applications, questions and tasks in maps. The *Err
// fields make the matching operation fail.
type Store struct {
	mu        sync.Mutex
	jobs      map[string]models.Job
	apps      map[string]models.Application
	appOrder  []string
	questions map[string][]models.MCQQuestion
	Tasks     []models.Task

	CreateAppErr   error
	EnqueueErr     error
	InsertQErr     error
	RecordScoreErr error
}

func NewStore() *Store {
	return &Store{
		jobs:      map[string]models.Job{},
		apps:      map[string]models.Application{},
		questions: map[string][]models.MCQQuestion{},
	}
}

func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{Job: s, Application: s, Question: s, Task: s}
}

func (s *Store) CreateJob(ctx context.Context, j *models.Job) (string, error) {
	if j == nil {
		return "", fmt.Errorf("job is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Created = time.Now().UTC()
	j.Updated = j.Created
	s.jobs[j.ID] = clone(*j)
	return j.ID, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	c := clone(j)
	return &c, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, clone(j))
	}
	return out, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	for _, a := range s.apps {
		if a.JobID == id && a.State != models.StateEvaluated {
			return fmt.Errorf("job %s: %w", id, models.ErrJobInUse)
		}
	}
	delete(s.jobs, id)
	delete(s.questions, id)
	return nil
}

func (s *Store) CreateApplication(ctx context.Context, a *models.Application) (string, error) {
	if s.CreateAppErr != nil {
		return "", s.CreateAppErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[a.JobID]; !ok {
		return "", fmt.Errorf("job %s: %w", a.JobID, models.ErrNotFound)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Classification == "" {
		a.Classification = models.DefaultClassification
	}
	if a.State == "" {
		a.State = models.StateSubmitted
	}
	if a.Skills == nil {
		a.Skills = []string{}
	}
	a.AppliedAt = time.Now().UTC()
	s.apps[a.ID] = clone(*a)
	s.appOrder = append(s.appOrder, a.ID)
	return a.ID, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, nil
	}
	c := s.withTitle(a)
	return &c, nil
}

func (s *Store) ListApplicationsByJob(ctx context.Context, jobID string) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Application{}
	for _, id := range s.appOrder {
		if a := s.apps[id]; a.JobID == jobID {
			out = append(out, s.withTitle(a))
		}
	}
	return out, nil
}

func (s *Store) withTitle(a models.Application) models.Application {
	c := clone(a)
	c.JobTitle = nil
	if j, ok := s.jobs[a.JobID]; ok {
		t := j.Title
		c.JobTitle = &t
	}
	return c
}

func (s *Store) MarkAssessmentPending(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return false, nil
	}
	st, err := workflow.Transition(a.State, models.StateAssessmentPending)
	if err != nil {
		return false, nil
	}
	a.State = st
	s.apps[id] = a
	return true, nil
}

func (s *Store) RecordMCQScore(ctx context.Context, id string, score float64) (bool, error) {
	if s.RecordScoreErr != nil {
		return false, s.RecordScoreErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok || a.MCQScore != nil || !workflow.CanTransition(a.State, models.StateEvaluated) {
		return false, nil
	}
	now := time.Now().UTC()
	a.MCQScore = &score
	a.State = models.StateEvaluated
	a.EvaluatedAt = &now
	s.apps[id] = a
	return true, nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, score float64, skills []string, classification *string) error {
	return s.update(id, func(a *models.Application) {
		a.MatchScore = &score
		if skills != nil {
			a.Skills = append([]string(nil), skills...)
		}
		if classification != nil {
			a.Classification = *classification
		}
	})
}

func (s *Store) UpdateBehavioral(ctx context.Context, id string, b *models.BehavioralScore) error {
	if b == nil {
		return fmt.Errorf("behavioral score is nil: %w", models.ErrValidation)
	}
	c := *b
	return s.update(id, func(a *models.Application) { a.BehavioralScore = &c })
}

func (s *Store) UpdateClassification(ctx context.Context, id, classification string, skills []string) error {
	return s.update(id, func(a *models.Application) {
		a.Classification = classification
		if skills != nil {
			a.Skills = append([]string(nil), skills...)
		}
	})
}

func (s *Store) update(id string, fn func(*models.Application)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return fmt.Errorf("application %s: %w", id, models.ErrNotFound)
	}
	fn(&a)
	s.apps[id] = a
	return nil
}

func (s *Store) ListQuestions(ctx context.Context, jobID string) ([]models.MCQQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.questions[jobID]), nil
}

func (s *Store) InsertQuestionsIfEmpty(ctx context.Context, jobID string, qs []models.MCQQuestion) (bool, error) {
	if s.InsertQErr != nil {
		return false, s.InsertQErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions[jobID]) > 0 {
		return false, nil
	}
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.NewString()
		}
		qs[i].JobID = jobID
		qs[i].Position = i
	}
	s.questions[jobID] = clone(qs)
	return true, nil
}

func (s *Store) EnqueueTask(ctx context.Context, t *models.Task) (int64, error) {
	if s.EnqueueErr != nil {
		return 0, s.EnqueueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = int64(len(s.Tasks) + 1)
	t.Status = "queued"
	s.Tasks = append(s.Tasks, *t)
	return t.ID, nil
}

func (s *Store) ClaimNext(ctx context.Context) (*models.Task, error) { return nil, nil }

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error { return nil }

func (s *Store) MoveToDeadLetter(ctx context.Context, t *models.Task) error { return nil }

func (s *Store) RequeueRunning(ctx context.Context) (int64, error) { return 0, nil }

func (s *Store) DeadLetterCount(ctx context.Context, typ string) (int, error) { return 0, nil }

// TaskTypes returns the types of enqueued tasks in order.
func (s *Store) TaskTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, t.Type)
	}
	return out
}

// clone deep-copies through JSON so callers never share slices with the store.
func clone[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
