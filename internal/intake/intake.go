// Package intake accepts candidate applications: it validates identity and
// declared media types, stores both uploads, creates the application record
// and queues the analyzer hand-off.
package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/mail"
	"strings"

	"github.com/garnizeh/hireflow/internal/blob"
	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/tasks"
	"github.com/garnizeh/hireflow/pkg/repository"
)

// File is one uploaded part. ContentType is the client-declared type; it is
// not sniffed.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type Submission struct {
	JobID         string
	CandidateName string
	Email         string
	Resume        File
	Video         File
}

type Service struct {
	jobs   repository.JobRepo
	apps   repository.ApplicationRepo
	queue  repository.TaskRepo
	blobs  blob.Store
	logger *slog.Logger

	// MaxAttempts bounds retries of the analysis task.
	MaxAttempts int
}

func NewService(jobs repository.JobRepo, apps repository.ApplicationRepo, queue repository.TaskRepo, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, apps: apps, queue: queue, blobs: blobs, logger: logger, MaxAttempts: 5}
}

// Submit returns the id of the new application. On any failure nothing is
// left behind: blobs written before the failure are removed.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	name := strings.TrimSpace(sub.CandidateName)
	email := strings.TrimSpace(sub.Email)
	jobID := strings.TrimSpace(sub.JobID)
	if jobID == "" {
		return "", fmt.Errorf("job_id is required: %w", models.ErrValidation)
	}
	if name == "" {
		return "", fmt.Errorf("name is required: %w", models.ErrValidation)
	}
	if email == "" {
		return "", fmt.Errorf("email is required: %w", models.ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("email %q is malformed: %w", email, models.ErrValidation)
	}
	if sub.Resume.Body == nil || sub.Video.Body == nil {
		return "", fmt.Errorf("resume and video are required: %w", models.ErrValidation)
	}
	if mediaType(sub.Resume.ContentType) != "application/pdf" {
		return "", fmt.Errorf("resume must be application/pdf, got %q: %w", sub.Resume.ContentType, models.ErrUnsupportedMediaType)
	}
	if !strings.HasPrefix(mediaType(sub.Video.ContentType), "video/") {
		return "", fmt.Errorf("video must be a video type, got %q: %w", sub.Video.ContentType, models.ErrUnsupportedMediaType)
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return "", fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}

	var written []string
	cleanup := func() {
		// the request context may already be canceled
		cctx := context.WithoutCancel(ctx)
		for _, ref := range written {
			if derr := s.blobs.Delete(cctx, ref); derr != nil {
				s.logger.Error("remove orphan blob", "ref", ref, "err", derr)
			}
		}
	}

	resumeRef, err := s.blobs.Put(ctx, sub.Resume.Body, sub.Resume.ContentType, sub.Resume.Name)
	if err != nil {
		return "", fmt.Errorf("store resume: %w", err)
	}
	written = append(written, resumeRef)

	videoRef, err := s.blobs.Put(ctx, sub.Video.Body, sub.Video.ContentType, sub.Video.Name)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("store video: %w", err)
	}
	written = append(written, videoRef)

	app := &models.Application{
		JobID:         job.ID,
		CandidateName: name,
		Email:         addr.Address,
		ResumeRef:     resumeRef,
		VideoRef:      videoRef,
		Skills:        []string{},
	}
	id, err := s.apps.CreateApplication(ctx, app)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("create application: %w", err)
	}

	log := s.logger.With("application_id", id, "job_id", job.ID)
	if _, err := tasks.Enqueue(ctx, s.queue, tasks.TypeAnalysisRequest, tasks.AnalysisRequest{ApplicationID: id}, 10, s.MaxAttempts); err != nil {
		log.Error("enqueue analysis request; scores stay pending", "err", err)
	}
	log.Info("application submitted")

	return id, nil
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
