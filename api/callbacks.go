package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/hireflow/internal/analysis"
)

// ResultMerger writes analyzer outputs into applications.
type ResultMerger interface {
	MergeMatch(ctx context.Context, id string, r analysis.MatchResult) error
	MergeBehavioral(ctx context.Context, id string, raw []byte) error
	MergeClassification(ctx context.Context, id string, r analysis.ClassificationResult) error
}

// CallbacksHandler receives analyzer results over HTTP.
type CallbacksHandler struct {
	merger ResultMerger
}

func NewCallbacksHandler(m ResultMerger) *CallbacksHandler {
	return &CallbacksHandler{merger: m}
}

const maxCallbackBody = 1 << 20

func (h *CallbacksHandler) PutMatchScore(w http.ResponseWriter, r *http.Request) {
	var req analysis.MatchResult
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if err := h.merger.MergeMatch(r.Context(), mux.Vars(r)["id"], req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CallbacksHandler) PutBehavioralScore(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		badRequest(w, "invalid request")
		return
	}
	if err := h.merger.MergeBehavioral(r.Context(), mux.Vars(r)["id"], raw); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CallbacksHandler) PutClassification(w http.ResponseWriter, r *http.Request) {
	var req analysis.ClassificationResult
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}
	if err := h.merger.MergeClassification(r.Context(), mux.Vars(r)["id"], req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
