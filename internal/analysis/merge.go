// Package analysis hands applications to the external analyzers and merges
// the scores they send back into the application record.
package analysis

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/pkg/repository"
)

//go:embed behavioral.schema.json
var behavioralSchemaJSON []byte

// package-level logger for analysis; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by the analysis package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Result kinds carried by analyzer result messages.
const (
	KindMatch          = "match"
	KindBehavioral     = "behavioral"
	KindClassification = "classification"
)

type MatchResult struct {
	MatchScore     *float64 `json:"match_score"`
	Skills         []string `json:"skills,omitempty"`
	Classification *string  `json:"classification,omitempty"`
}

type ClassificationResult struct {
	Classification string   `json:"classification"`
	Skills         []string `json:"skills"`
}

// Result is one analyzer output addressed to an application.
type Result struct {
	ApplicationID string          `json:"application_id"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

// Merger applies analyzer outputs as field-level upserts. Each merge writes
// only its own columns, so results may arrive in any order.
type Merger struct {
	apps   repository.ApplicationRepo
	schema *jsonschema.Schema
}

func NewMerger(apps repository.ApplicationRepo) (*Merger, error) {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(behavioralSchemaJSON, schema); err != nil {
		return nil, fmt.Errorf("compile behavioral schema: %w", err)
	}
	return &Merger{apps: apps, schema: schema}, nil
}

func (m *Merger) MergeMatch(ctx context.Context, id string, r MatchResult) error {
	if r.MatchScore == nil {
		return fmt.Errorf("match_score is required: %w", models.ErrValidation)
	}
	score := *r.MatchScore
	if score < 0 || score > 100 {
		return fmt.Errorf("match_score %v out of range 0-100: %w", score, models.ErrValidation)
	}
	var class *string
	if r.Classification != nil {
		c := strings.TrimSpace(*r.Classification)
		if c == "" {
			return fmt.Errorf("classification is empty: %w", models.ErrValidation)
		}
		class = &c
	}
	if err := m.apps.UpdateMatch(ctx, id, score, cleanSkills(r.Skills), class); err != nil {
		return fmt.Errorf("merge match score: %w", err)
	}
	logger.Info("match score merged", "application_id", id, "score", score)
	return nil
}

// MergeBehavioral validates raw as a complete behavioral record and stores
// it. Partial records are rejected.
func (m *Merger) MergeBehavioral(ctx context.Context, id string, raw []byte) error {
	b, err := m.ParseBehavioral(ctx, raw)
	if err != nil {
		return err
	}
	if err := m.apps.UpdateBehavioral(ctx, id, b); err != nil {
		return fmt.Errorf("merge behavioral score: %w", err)
	}
	logger.Info("behavioral score merged", "application_id", id)
	return nil
}

func (m *Merger) MergeClassification(ctx context.Context, id string, r ClassificationResult) error {
	c := strings.TrimSpace(r.Classification)
	if c == "" {
		return fmt.Errorf("classification is required: %w", models.ErrValidation)
	}
	if err := m.apps.UpdateClassification(ctx, id, c, cleanSkills(r.Skills)); err != nil {
		return fmt.Errorf("merge classification: %w", err)
	}
	logger.Info("classification merged", "application_id", id, "classification", c)
	return nil
}

// Apply routes a result message to the merge for its kind.
func (m *Merger) Apply(ctx context.Context, r Result) error {
	if r.ApplicationID == "" {
		return fmt.Errorf("application_id is required: %w", models.ErrValidation)
	}
	switch r.Kind {
	case KindMatch:
		var mr MatchResult
		if err := decodePayload(r.Payload, &mr); err != nil {
			return err
		}
		return m.MergeMatch(ctx, r.ApplicationID, mr)
	case KindBehavioral:
		return m.MergeBehavioral(ctx, r.ApplicationID, r.Payload)
	case KindClassification:
		var cr ClassificationResult
		if err := decodePayload(r.Payload, &cr); err != nil {
			return err
		}
		return m.MergeClassification(ctx, r.ApplicationID, cr)
	}
	return fmt.Errorf("unknown result kind %q: %w", r.Kind, models.ErrValidation)
}

// ParseBehavioral checks raw against the behavioral schema and decodes it.
func (m *Merger) ParseBehavioral(ctx context.Context, raw []byte) (*models.BehavioralScore, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("behavioral payload is empty: %w", models.ErrValidation)
	}
	verrs, err := m.schema.ValidateBytes(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("behavioral payload: %v: %w", err, models.ErrValidation)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, v.PropertyPath+": "+v.Message)
		}
		return nil, fmt.Errorf("behavioral payload: %s: %w", strings.Join(msgs, "; "), models.ErrValidation)
	}
	var b models.BehavioralScore
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode behavioral payload: %v: %w", err, models.ErrValidation)
	}
	return &b, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload is empty: %w", models.ErrValidation)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, models.ErrValidation)
	}
	return nil
}

// cleanSkills trims entries and drops blanks, keeping order. nil stays nil
// so the store leaves existing skills untouched.
func cleanSkills(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
