// Package workflow holds the application state machine:
// submitted -> assessment_pending -> evaluated. No transition is reversible.
package workflow

import (
	"fmt"

	"github.com/garnizeh/hireflow/internal/models"
)

var next = map[string]string{
	models.StateSubmitted:         models.StateAssessmentPending,
	models.StateAssessmentPending: models.StateEvaluated,
}

// Valid reports whether s is a known state.
func Valid(s string) bool {
	switch s {
	case models.StateSubmitted, models.StateAssessmentPending, models.StateEvaluated:
		return true
	}
	return false
}

func CanTransition(from, to string) bool {
	n, ok := next[from]
	return ok && n == to
}

// Transition returns to when the move is legal and wraps
// models.ErrInvalidTransition otherwise.
func Transition(from, to string) (string, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%s -> %s: %w", from, to, models.ErrInvalidTransition)
	}
	return to, nil
}

// Terminal reports whether no further transition exists from s.
func Terminal(s string) bool {
	_, ok := next[s]
	return Valid(s) && !ok
}
