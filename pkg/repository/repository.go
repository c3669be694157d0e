package repository

import (
	"context"

	"github.com/garnizeh/hireflow/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return nil, nil when the row does not exist.

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (string, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	// DeleteJob removes the job and its MCQ set. It fails with
	// models.ErrJobInUse while an application for the job is not evaluated.
	DeleteJob(ctx context.Context, id string) error
}

type ApplicationRepo interface {
	CreateApplication(ctx context.Context, a *models.Application) (string, error)
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	// ListApplicationsByJob returns applications in arrival order.
	ListApplicationsByJob(ctx context.Context, jobID string) ([]models.Application, error)

	// MarkAssessmentPending moves a submitted application to
	// assessment_pending. It reports false when the application was not in
	// the submitted state.
	MarkAssessmentPending(ctx context.Context, id string) (bool, error)
	// RecordMCQScore sets mcq_score and the evaluated state only if no score
	// exists and the application is assessment_pending. It reports whether
	// the write happened.
	RecordMCQScore(ctx context.Context, id string, score float64) (bool, error)

	// Field-level merges. Each touches only its own columns and returns
	// models.ErrNotFound for an unknown id.
	UpdateMatch(ctx context.Context, id string, score float64, skills []string, classification *string) error
	UpdateBehavioral(ctx context.Context, id string, b *models.BehavioralScore) error
	UpdateClassification(ctx context.Context, id, classification string, skills []string) error
}

type QuestionRepo interface {
	ListQuestions(ctx context.Context, jobID string) ([]models.MCQQuestion, error)
	// InsertQuestionsIfEmpty stores qs for the job unless a set already
	// exists. It reports whether qs were stored.
	InsertQuestionsIfEmpty(ctx context.Context, jobID string, qs []models.MCQQuestion) (bool, error)
}

type TaskRepo interface {
	EnqueueTask(ctx context.Context, t *models.Task) (int64, error)
	// ClaimNext marks the next due task running and returns it, or nil when
	// nothing is due.
	ClaimNext(ctx context.Context) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	MoveToDeadLetter(ctx context.Context, t *models.Task) error
	// RequeueRunning returns tasks left running by a stopped process to the
	// retry state.
	RequeueRunning(ctx context.Context) (int64, error)
	// DeadLetterCount reports how many tasks of typ were abandoned.
	DeadLetterCount(ctx context.Context, typ string) (int, error)
}

// Repository groups the stores a service needs.
type Repository struct {
	Job         JobRepo
	Application ApplicationRepo
	Question    QuestionRepo
	Task        TaskRepo
}
