// Command mcq-preview asks the configured Ollama model for a batch of
// questions on one topic and prints them, answers included. It bypasses the
// database so prompt templates can be tried out quickly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/hireflow/internal/config"
	"github.com/garnizeh/hireflow/internal/questionbank"
	"github.com/garnizeh/hireflow/pkg/ollama"
)

func main() {
	topic := flag.String("topic", "Go concurrency", "Question topic")
	count := flag.Int("count", 3, "Number of questions")
	model := flag.String("model", "", "Model name (default: first configured ollama model)")
	templatePath := flag.String("template", "", "Prompt template file")
	timeout := flag.Duration("timeout", 2*time.Minute, "Generation timeout")
	flag.Parse()

	_ = godotenv.Load()
	ollama.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := config.DefaultOllamaConfig()
	cfg.Timeout = *timeout
	name := *model
	if name == "" && len(cfg.DefaultModelNames) > 0 {
		name = cfg.DefaultModelNames[0]
	}

	var tmpl string
	if *templatePath != "" {
		b, err := os.ReadFile(*templatePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read template: %v\n", err)
			os.Exit(1)
		}
		tmpl = string(b)
	}

	client, err := ollama.NewDefaultClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ollama client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := client.EnsureModel(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "ollama at %s: %v\n", cfg.BaseURL, err)
		os.Exit(1)
	}

	gen, err := questionbank.NewOllamaGenerator(client, name, tmpl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "template: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	questions, err := gen.Generate(ctx, *topic, *count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "model=%s questions=%d elapsed=%s\n", name, len(questions), time.Since(start).Round(time.Millisecond))
}
