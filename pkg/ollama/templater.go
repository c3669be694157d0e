package ollama

import (
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// Prompt is a parsed prompt template. Missing keys are errors, so a template
// that references a field the caller does not provide fails at render time.
type Prompt struct {
	tpl *template.Template
}

// ParsePrompt parses text once so configuration mistakes surface at startup.
func ParsePrompt(text string) (*Prompt, error) {
	tpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt: %w", err)
	}
	return &Prompt{tpl: tpl}, nil
}

func (p *Prompt) Render(data any) (string, error) {
	var sb strings.Builder
	if err := p.tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// RenderTemplate parses and renders tmpl in one step.
func RenderTemplate(tmpl string, data any) (string, error) {
	p, err := ParsePrompt(tmpl)
	if err != nil {
		return "", err
	}
	return p.Render(data)
}
