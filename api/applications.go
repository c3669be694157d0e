package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/export"
	"github.com/garnizeh/hireflow/internal/intake"
	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/scoring"
	"github.com/garnizeh/hireflow/pkg/repository"
)

// Submitter accepts candidate applications.
type Submitter interface {
	Submit(ctx context.Context, sub intake.Submission) (string, error)
}

type ApplicationsHandler struct {
	intake   Submitter
	apps     repository.ApplicationRepo
	jobs     repository.JobRepo
	maxBytes int64
}

// NewApplicationsHandler builds the handler. maxBytes caps the whole
// multipart body.
func NewApplicationsHandler(s Submitter, apps repository.ApplicationRepo, jobs repository.JobRepo, maxBytes int64) *ApplicationsHandler {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	return &ApplicationsHandler{intake: s, apps: apps, jobs: jobs, maxBytes: maxBytes}
}

type createdResponse struct {
	ID string `json:"_id"`
}

// applicationView is an application with its derived composite metrics.
type applicationView struct {
	models.Application
	Composite scoring.Composite `json:"composite"`
}

func (h *ApplicationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)}, http.StatusRequestEntityTooLarge)
			return
		}
		badRequest(w, "expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	resume, rf, err := formFile(r, "resume")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rf.Close()
	video, vf, err := formFile(r, "video")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer vf.Close()

	jobID := r.FormValue("job_id")
	if jobID == "" {
		jobID = r.FormValue("jobId")
	}

	id, err := h.intake.Submit(r.Context(), intake.Submission{
		JobID:         jobID,
		CandidateName: r.FormValue("name"),
		Email:         r.FormValue("email"),
		Resume:        resume,
		Video:         video,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, createdResponse{ID: id}, http.StatusCreated)
}

func formFile(r *http.Request, field string) (intake.File, multipart.File, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return intake.File{}, nil, fmt.Errorf("%s file is required: %w", field, models.ErrValidation)
	}
	return intake.File{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Body: f}, f, nil
}

// ListByJob returns the job's applications ranked by match score. An
// orphaned job id still lists its applications.
func (h *ApplicationsHandler) ListByJob(w http.ResponseWriter, r *http.Request) {
	_, apps, err := h.jobApplications(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, scoring.RankEvaluated(apps), http.StatusOK)
}

func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	app, err := h.apps.GetApplication(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if app == nil {
		writeError(w, r, fmt.Errorf("application %s: %w", id, models.ErrNotFound))
		return
	}
	writeJSON(w, applicationView{Application: *app, Composite: scoring.Evaluate(*app)}, http.StatusOK)
}

func (h *ApplicationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	job, apps, err := h.jobApplications(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRanked(&buf, job, apps, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="applications-%s.xlsx"`, mux.Vars(r)["jobId"]))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("write export", "err", err)
	}
}

// jobApplications loads the job (nil when deleted) and its applications.
// It fails with ErrNotFound only when neither exists.
func (h *ApplicationsHandler) jobApplications(r *http.Request) (*models.Job, []models.Application, error) {
	jobID := mux.Vars(r)["jobId"]
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		return nil, nil, err
	}
	apps, err := h.apps.ListApplicationsByJob(r.Context(), jobID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil && len(apps) == 0 {
		return nil, nil, fmt.Errorf("job %s: %w", jobID, models.ErrNotFound)
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return job, apps, nil
}
