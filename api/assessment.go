package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/models"
)

// Assessor serves question sets and scores responses.
type Assessor interface {
	Questions(ctx context.Context, jobID, applicantID string) ([]models.PublicQuestion, error)
	Evaluate(ctx context.Context, jobID, applicantID string, responses []models.MCQResponse) (float64, error)
}

type AssessmentHandler struct {
	svc Assessor
}

func NewAssessmentHandler(svc Assessor) *AssessmentHandler {
	return &AssessmentHandler{svc: svc}
}

type evaluateRequest struct {
	ApplicantID string               `json:"applicantId"`
	Responses   []models.MCQResponse `json:"responses"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// MCQs serves the job's question set without answers. The applicantId query
// parameter starts that applicant's assessment; evaluate-mcqs answers 409
// for an applicant whose questions were never requested with it.
func (h *AssessmentHandler) MCQs(w http.ResponseWriter, r *http.Request) {
	qs, err := h.svc.Questions(r.Context(), mux.Vars(r)["jobId"], r.URL.Query().Get("applicantId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if qs == nil {
		qs = []models.PublicQuestion{}
	}
	writeJSON(w, qs, http.StatusOK)
}

func (h *AssessmentHandler) EvaluateMCQs(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if req.ApplicantID == "" {
		badRequest(w, "applicantId is required")
		return
	}
	score, err := h.svc.Evaluate(r.Context(), mux.Vars(r)["jobId"], req.ApplicantID, req.Responses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, scoreResponse{Score: score}, http.StatusOK)
}
