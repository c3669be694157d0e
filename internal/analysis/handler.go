package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/tasks"
	"github.com/garnizeh/hireflow/pkg/repository"
)

// RequestHandler turns analysis.request tasks into dispatcher calls.
type RequestHandler struct {
	apps         repository.ApplicationRepo
	jobs         repository.JobRepo
	dispatcher   Dispatcher
	callbackBase string
}

// NewRequestHandler builds the handler. callbackBase is the public base URL
// of this service; an empty value leaves the callback and media URLs out of
// requests.
func NewRequestHandler(apps repository.ApplicationRepo, jobs repository.JobRepo, d Dispatcher, callbackBase string) *RequestHandler {
	return &RequestHandler{apps: apps, jobs: jobs, dispatcher: d, callbackBase: strings.TrimRight(callbackBase, "/")}
}

// Handle satisfies tasks.Handler. Dispatcher failures are returned for the
// pool to retry; malformed payloads and vanished applications are permanent.
func (h *RequestHandler) Handle(ctx context.Context, t *models.Task) error {
	var p tasks.AnalysisRequest
	if err := json.Unmarshal(t.Payload, &p); err != nil || p.ApplicationID == "" {
		return fmt.Errorf("bad analysis request payload %q: %w", t.Payload, tasks.ErrPermanent)
	}

	app, err := h.apps.GetApplication(ctx, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		return fmt.Errorf("application %s: %w", p.ApplicationID, tasks.ErrPermanent)
	}
	if app.MatchScore != nil && app.BehavioralScore != nil {
		logger.Info("analysis already complete, skipping dispatch", "application_id", app.ID)
		return nil
	}

	req := Request{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		ResumeRef:     app.ResumeRef,
		VideoRef:      app.VideoRef,
		ResumeURL:     h.link("/api/blobs/", app.ResumeRef),
		VideoURL:      h.link("/api/blobs/", app.VideoRef),
		CallbackURL:   h.link("/api/applications/", app.ID),
	}
	job, err := h.jobs.GetJob(ctx, app.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job != nil {
		req.JobDescription = job.Description
	}

	if err := h.dispatcher.Dispatch(ctx, req); err != nil {
		logger.Warn("analysis dispatch failed", "application_id", app.ID, "attempt", t.Attempts+1, "err", err)
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	logger.Info("analysis dispatched", "application_id", app.ID, "job_id", app.JobID)
	return nil
}

func (h *RequestHandler) link(prefix, id string) string {
	if h.callbackBase == "" || id == "" {
		return ""
	}
	return h.callbackBase + prefix + url.PathEscape(id)
}
