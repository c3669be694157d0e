// Package questionbank generates multiple choice questions for a job's
// assessment topics with an LLM and validates what comes back.
package questionbank

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/hireflow/internal/models"
)

//go:embed questions.schema.json
var questionsSchema []byte

// compiledSchema is built once on first use and shared by every parse.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(questionsSchema, schema); err != nil {
		return nil, fmt.Errorf("compile questions schema: %w", err)
	}
	return schema, nil
})

var ErrInvalidOutput = errors.New("model output is not a valid question set")

type GeneratedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Generator produces count questions about one topic.
type Generator interface {
	Generate(ctx context.Context, topic string, count int) ([]GeneratedQuestion, error)
}

// Bank builds a job's full question set, topic by topic.
type Bank struct {
	gen    Generator
	logger *slog.Logger
}

func NewBank(gen Generator, logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bank{gen: gen, logger: logger}
}

// ForJob returns len(MCQTopics) * MCQsPerTopic questions in topic order.
func (b *Bank) ForJob(ctx context.Context, a models.Assessment) ([]models.MCQQuestion, error) {
	out := make([]models.MCQQuestion, 0, a.QuestionCount())
	if a.MCQsPerTopic <= 0 {
		return out, nil
	}
	for _, topic := range a.MCQTopics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		qs, err := b.gen.Generate(ctx, topic, a.MCQsPerTopic)
		if err != nil {
			return nil, fmt.Errorf("generate questions for %q: %w", topic, err)
		}
		if len(qs) < a.MCQsPerTopic {
			return nil, fmt.Errorf("topic %q: got %d questions, want %d: %w", topic, len(qs), a.MCQsPerTopic, ErrInvalidOutput)
		}
		for _, q := range qs[:a.MCQsPerTopic] {
			out = append(out, models.MCQQuestion{
				Topic:    topic,
				Question: strings.TrimSpace(q.Question),
				Options:  q.Options,
				Answer:   q.Answer,
			})
		}
		b.logger.Debug("questions generated", "topic", topic, "count", a.MCQsPerTopic)
	}
	return out, nil
}

// ParseQuestions extracts the question array from raw model text, checks it
// against the embedded JSON schema and makes sure every answer is one of its
// options.
func ParseQuestions(ctx context.Context, raw string) ([]GeneratedQuestion, error) {
	body := extractArray(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON array found: %w", ErrInvalidOutput)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	verrs, err := schema.ValidateBytes(ctx, []byte(body))
	if err != nil {
		return nil, fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("%s: %w", sb.String(), ErrInvalidOutput)
	}

	var qs []GeneratedQuestion
	if err := json.Unmarshal([]byte(body), &qs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	for i, q := range qs {
		if !slices.Contains(q.Options, q.Answer) {
			return nil, fmt.Errorf("question %d: answer %q is not an option: %w", i, q.Answer, ErrInvalidOutput)
		}
	}
	return qs, nil
}

// extractArray accepts a bare array, an object wrapping it under
// "questions", or either embedded in surrounding prose.
func extractArray(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var wrapped struct {
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal([]byte(s), &wrapped); err == nil && len(wrapped.Questions) > 0 {
			return string(wrapped.Questions)
		}
	}
	first := strings.Index(s, "[")
	last := strings.LastIndex(s, "]")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
