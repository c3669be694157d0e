package questionbank

import (
	"context"
	"encoding/json"

	"github.com/garnizeh/hireflow/pkg/ollama"
)

// DefaultPrompt is used when no template is configured. It receives Topic
// and Count.
const DefaultPrompt = `You write multiple choice questions for technical hiring assessments.
Write exactly {{.Count}} questions about "{{.Topic}}".
Each question has 4 short options and exactly one correct answer.
Reply with JSON only, in this shape:
{"questions":[{"question":"...","options":["...","...","...","..."],"answer":"<one of the options, verbatim>"}]}`

type promptData struct {
	Topic string
	Count int
}

// responseFormat constrains Ollama's output to the shape DefaultPrompt asks
// for. ParseQuestions still validates the result.
var responseFormat = json.RawMessage(`{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "options", "answer"],
        "properties": {
          "question": {"type": "string"},
          "options": {"type": "array", "items": {"type": "string"}},
          "answer": {"type": "string"}
        }
      }
    }
  }
}`)

// jsonGenerator is the part of ollama.Client the generator needs.
type jsonGenerator interface {
	GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage) (ollama.GenerateResult, error)
}

type OllamaGenerator struct {
	client jsonGenerator
	model  string
	prompt *ollama.Prompt
}

// NewOllamaGenerator fails when template does not parse. An empty template
// selects DefaultPrompt.
func NewOllamaGenerator(client jsonGenerator, model, template string) (*OllamaGenerator, error) {
	p, err := parsePrompt(template)
	if err != nil {
		return nil, err
	}
	return &OllamaGenerator{client: client, model: model, prompt: p}, nil
}

func parsePrompt(template string) (*ollama.Prompt, error) {
	if template == "" {
		template = DefaultPrompt
	}
	return ollama.ParsePrompt(template)
}

func (g *OllamaGenerator) Generate(ctx context.Context, topic string, count int) ([]GeneratedQuestion, error) {
	prompt, err := g.prompt.Render(promptData{Topic: topic, Count: count})
	if err != nil {
		return nil, err
	}
	res, err := g.client.GenerateStructured(ctx, g.model, prompt, responseFormat)
	if err != nil {
		return nil, err
	}
	return ParseQuestions(ctx, res.Text)
}
