package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/pkg/repository"
)

const (
	defaultMCQsPerTopic = 2
	maxMCQsPerTopic     = 20
)

type JobsHandler struct {
	jobs repository.JobRepo
}

func NewJobsHandler(jobs repository.JobRepo) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

type assessmentRequest struct {
	MCQTopics       []string `json:"mcq_topics"`
	MCQsPerTopic    *int     `json:"mcqs_per_topic"`
	CodingTopics    []string `json:"coding_topics"`
	CodingQuestions int      `json:"coding_questions"`
}

type createJobRequest struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Location     string            `json:"location"`
	Salary       string            `json:"salary"`
	Requirements []string          `json:"requirements"`
	Assessment   assessmentRequest `json:"assessment"`
}

func (req createJobRequest) job() (*models.Job, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	perTopic := defaultMCQsPerTopic
	if req.Assessment.MCQsPerTopic != nil {
		perTopic = *req.Assessment.MCQsPerTopic
	}
	if perTopic < 0 || perTopic > maxMCQsPerTopic {
		return nil, fmt.Errorf("mcqs_per_topic must be between 0 and %d: %w", maxMCQsPerTopic, models.ErrValidation)
	}
	if req.Assessment.CodingQuestions < 0 {
		return nil, fmt.Errorf("coding_questions must not be negative: %w", models.ErrValidation)
	}

	return &models.Job{
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		Salary:       strings.TrimSpace(req.Salary),
		Requirements: nonBlank(req.Requirements),
		Assessment: models.Assessment{
			MCQTopics:       nonBlank(req.Assessment.MCQTopics),
			MCQsPerTopic:    perTopic,
			CodingTopics:    nonBlank(req.Assessment.CodingTopics),
			CodingQuestions: req.Assessment.CodingQuestions,
		},
	}, nil
}

func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	job, err := req.job()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.jobs.CreateJob(r.Context(), job); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("job created", "job_id", job.ID, "title", job.Title)
	writeJSON(w, job, http.StatusCreated)
}

func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, jobs, http.StatusOK)
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if job == nil {
		writeError(w, r, fmt.Errorf("job %s: %w", id, models.ErrNotFound))
		return
	}
	writeJSON(w, job, http.StatusOK)
}

func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.jobs.DeleteJob(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("job deleted", "job_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
