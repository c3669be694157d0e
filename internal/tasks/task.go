// Package tasks runs durable background work stored in the tasks table.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/hireflow/internal/models"
)

// TypeAnalysisRequest asks the external analyzers to score an application.
const TypeAnalysisRequest = "analysis.request"

// AnalysisRequest is the payload of a TypeAnalysisRequest task.
type AnalysisRequest struct {
	ApplicationID string `json:"application_id"`
}

// Handler is the function that processes a task
type Handler func(ctx context.Context, t *models.Task) error

// ErrPermanent marks a handler failure that must not be retried.
var ErrPermanent = errors.New("permanent task failure")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}
