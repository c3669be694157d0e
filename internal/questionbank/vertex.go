package questionbank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/garnizeh/hireflow/pkg/ollama"
)

// VertexGenerator asks a Gemini model on Vertex AI for questions.
type VertexGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	prompt *ollama.Prompt
}

func NewVertexGenerator(ctx context.Context, project, location, modelName, template string) (*VertexGenerator, error) {
	if project == "" {
		return nil, errors.New("vertex project is required")
	}
	if location == "" {
		location = "us-central1"
	}
	prompt, err := parsePrompt(template)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(2048)
	model.ResponseMIMEType = "application/json"

	return &VertexGenerator{client: client, model: model, prompt: prompt}, nil
}

func (g *VertexGenerator) Generate(ctx context.Context, topic string, count int) ([]GeneratedQuestion, error) {
	prompt, err := g.prompt.Render(promptData{Topic: topic, Count: count})
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	return ParseQuestions(ctx, responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func (g *VertexGenerator) Close() error {
	return g.client.Close()
}
