// Package assessment serves a job's MCQ set and evaluates one-shot candidate
// responses.
package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/workflow"
	"github.com/garnizeh/hireflow/pkg/repository"
)

// QuestionSource builds a job's question set with answer keys.
type QuestionSource interface {
	ForJob(ctx context.Context, a models.Assessment) ([]models.MCQQuestion, error)
}

type Service struct {
	jobs      repository.JobRepo
	apps      repository.ApplicationRepo
	questions repository.QuestionRepo
	source    QuestionSource
	logger    *slog.Logger
	group     singleflight.Group

	// GenerateTimeout bounds one question-set generation. Generation is
	// shared by concurrent callers, so it does not follow any one request's
	// cancellation.
	GenerateTimeout time.Duration
}

func NewService(jobs repository.JobRepo, apps repository.ApplicationRepo, questions repository.QuestionRepo, source QuestionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:            jobs,
		apps:            apps,
		questions:       questions,
		source:          source,
		logger:          logger,
		GenerateTimeout: 2 * time.Minute,
	}
}

// Questions returns the job's question set without answers. When
// applicantID is set, a submitted application moves to assessment_pending.
func (s *Service) Questions(ctx context.Context, jobID, applicantID string) ([]models.PublicQuestion, error) {
	job, err := s.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if applicantID != "" {
		if _, err := s.application(ctx, job.ID, applicantID); err != nil {
			return nil, err
		}
	}

	qs, err := s.questionSet(ctx, job)
	if err != nil {
		return nil, err
	}

	if applicantID != "" {
		moved, err := s.apps.MarkAssessmentPending(ctx, applicantID)
		if err != nil {
			return nil, fmt.Errorf("mark assessment pending: %w", err)
		}
		if moved {
			s.logger.Info("assessment started", "application_id", applicantID, "job_id", job.ID)
		}
	}

	out := make([]models.PublicQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Public())
	}
	return out, nil
}

// Evaluate scores the responses and records the score exactly once.
func (s *Service) Evaluate(ctx context.Context, jobID, applicantID string, responses []models.MCQResponse) (float64, error) {
	job, err := s.job(ctx, jobID)
	if err != nil {
		return 0, err
	}
	app, err := s.application(ctx, job.ID, applicantID)
	if err != nil {
		return 0, err
	}

	qs, err := s.questions.ListQuestions(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	if len(qs) == 0 {
		return 0, fmt.Errorf("job %s has no questions: %w", job.ID, models.ErrValidation)
	}

	if app.MCQScore != nil || workflow.Terminal(app.State) {
		return 0, fmt.Errorf("application %s: %w", app.ID, models.ErrAlreadyEvaluated)
	}
	if _, err := workflow.Transition(app.State, models.StateEvaluated); err != nil {
		return 0, fmt.Errorf("application %s has not started the assessment; request the questions with its applicantId first: %w", app.ID, err)
	}

	if err := CheckResponses(qs, responses); err != nil {
		return 0, err
	}
	score := Score(qs, responses)

	ok, err := s.apps.RecordMCQScore(ctx, app.ID, score)
	if err != nil {
		return 0, fmt.Errorf("record score: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("application %s: %w", app.ID, models.ErrAlreadyEvaluated)
	}
	s.logger.Info("assessment evaluated", "application_id", app.ID, "job_id", job.ID, "score", score)

	return score, nil
}

// CheckResponses requires every response to name a known question at most
// once and every question to be answered.
func CheckResponses(qs []models.MCQQuestion, responses []models.MCQResponse) error {
	known := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		known[q.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		if _, ok := known[r.QuestionID]; !ok {
			return fmt.Errorf("question %q does not belong to this assessment: %w", r.QuestionID, models.ErrValidation)
		}
		if _, dup := seen[r.QuestionID]; dup {
			return fmt.Errorf("question %q answered twice: %w", r.QuestionID, models.ErrValidation)
		}
		seen[r.QuestionID] = struct{}{}
	}
	if missing := len(qs) - len(seen); missing > 0 {
		return fmt.Errorf("%d of %d questions unanswered: %w", missing, len(qs), models.ErrIncompleteSubmission)
	}
	return nil
}

// Score is correct/total*100 rounded to two decimals. Responses must already
// have passed CheckResponses.
func Score(qs []models.MCQQuestion, responses []models.MCQResponse) float64 {
	if len(qs) == 0 {
		return 0
	}
	answers := make(map[string]string, len(qs))
	for _, q := range qs {
		answers[q.ID] = q.Answer
	}
	correct := 0
	for _, r := range responses {
		if a, ok := answers[r.QuestionID]; ok && a == r.Selected {
			correct++
		}
	}
	v := float64(correct) / float64(len(qs)) * 100
	return math.Round(v*100) / 100
}

func (s *Service) questionSet(ctx context.Context, job *models.Job) ([]models.MCQQuestion, error) {
	qs, err := s.questions.ListQuestions(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(qs) > 0 || job.Assessment.QuestionCount() == 0 {
		return qs, nil
	}

	v, err, shared := s.group.Do(job.ID, func() (any, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.GenerateTimeout)
		defer cancel()

		// a previous flight may have stored the set after our first read
		if existing, err := s.questions.ListQuestions(gctx, job.ID); err != nil || len(existing) > 0 {
			return existing, err
		}

		generated, err := s.source.ForJob(gctx, job.Assessment)
		if err != nil {
			s.logger.Error("question generation failed", "job_id", job.ID, "err", err)
			return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		if len(generated) == 0 {
			return nil, fmt.Errorf("%w: no questions generated", models.ErrUpstreamUnavailable)
		}
		stored, err := s.questions.InsertQuestionsIfEmpty(gctx, job.ID, generated)
		if err != nil {
			return nil, fmt.Errorf("store questions: %w", err)
		}
		if stored {
			s.logger.Info("question set stored", "job_id", job.ID, "count", len(generated))
		}
		return s.questions.ListQuestions(gctx, job.ID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("question generation shared", "job_id", job.ID)
	}
	return v.([]models.MCQQuestion), nil
}

func (s *Service) job(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return job, nil
}

func (s *Service) application(ctx context.Context, jobID, id string) (*models.Application, error) {
	if id == "" {
		return nil, fmt.Errorf("applicantId is required: %w", models.ErrValidation)
	}
	app, err := s.apps.GetApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app == nil || app.JobID != jobID {
		return nil, fmt.Errorf("application %s for job %s: %w", id, jobID, models.ErrNotFound)
	}
	return app, nil
}
