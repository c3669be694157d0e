package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/hireflow/internal/config"
	"github.com/garnizeh/hireflow/pkg/ollama"
)

// stream writes each chunk as one NDJSON line the way Ollama streams.
func stream(w http.ResponseWriter, chunks ...map[string]any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		_ = enc.Encode(c)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func newClient(t *testing.T, h http.HandlerFunc, cfg config.OllamaConfig) *ollama.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	c, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func tags(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		models := make([]map[string]any, 0, len(names))
		for _, n := range names {
			models = append(models, map[string]any{"name": n, "size": 42})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := ollama.NewClient(config.OllamaConfig{BaseURL: "not a url"}, nil); err == nil {
		t.Fatal("expected invalid base url error")
	}
}

func TestClient_ListModelsHealthEnsureModel(t *testing.T) {
	c := newClient(t, tags("llama3:latest", "qwen2.5:7b"), config.OllamaConfig{})
	ctx := context.Background()

	models, err := c.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3:latest" || models[0].Size != 42 {
		t.Fatalf("unexpected models %#v", models)
	}
	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	for _, name := range []string{"llama3", "llama3:latest", "qwen2.5:7b"} {
		if err := c.EnsureModel(ctx, name); err != nil {
			t.Errorf("EnsureModel(%q): %v", name, err)
		}
	}
	for _, name := range []string{"llama", "qwen2.5:14b", "mistral"} {
		if err := c.EnsureModel(ctx, name); !errors.Is(err, ollama.ErrModelNotFound) {
			t.Errorf("EnsureModel(%q): expected ErrModelNotFound, got %v", name, err)
		}
	}
}

func TestClient_Health_NoModels(t *testing.T) {
	c := newClient(t, tags(), config.OllamaConfig{})
	if err := c.Health(context.Background()); !errors.Is(err, ollama.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestClient_Generate_ConcatenatesChunks(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		stream(w,
			map[string]any{"response": `{"questions":[`, "done": false},
			map[string]any{"response": `]}`, "done": true, "eval_count": 7},
		)
	}, config.OllamaConfig{})

	res, err := c.Generate(context.Background(), "llama3", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != `{"questions":[]}` {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Meta["attempts"] != 1 || res.Meta["model"] != "llama3" {
		t.Fatalf("unexpected meta %v", res.Meta)
	}
	if _, ok := res.Meta["latency_ms"]; !ok {
		t.Fatal("expected latency_ms in meta")
	}
}

func TestClient_GenerateStructured_SendsFormatAndOptions(t *testing.T) {
	var got []struct {
		Format  json.RawMessage `json:"format"`
		Options map[string]any  `json:"options"`
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Format  json.RawMessage `json:"format"`
			Options map[string]any  `json:"options"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, body)
		stream(w, map[string]any{"response": "{}", "done": true})
	}, config.OllamaConfig{Temperature: 0.2})

	schema := json.RawMessage(`{"type":"object"}`)
	ctx := context.Background()
	if _, err := c.GenerateStructured(ctx, "m", "p", schema); err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if _, err := c.GenerateStructured(ctx, "m", "p", nil); err != nil {
		t.Fatalf("GenerateStructured without schema: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	if string(got[0].Format) != `{"type":"object"}` {
		t.Fatalf("schema not sent as format: %s", got[0].Format)
	}
	if string(got[1].Format) != `"json"` {
		t.Fatalf("expected plain json format, got %s", got[1].Format)
	}
	if got[0].Options["temperature"] != 0.2 {
		t.Fatalf("temperature not sent: %v", got[0].Options)
	}
}

func TestClient_Generate_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusInternalServerError)
			return
		}
		stream(w, map[string]any{"response": "ok", "done": true})
	}, config.OllamaConfig{Retries: 2, Backoff: 10 * time.Millisecond, CircuitFailureThreshold: 10})

	res, err := c.Generate(context.Background(), "m", "p")
	if err != nil {
		t.Fatalf("expected success after retry: %v", err)
	}
	if calls.Load() != 2 || res.Meta["attempts"] != 2 {
		t.Fatalf("expected 2 attempts, got %d calls meta %v", calls.Load(), res.Meta)
	}
}

func TestClient_Generate_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}\n"))
	}, config.OllamaConfig{Retries: 3, Backoff: time.Millisecond})

	_, err := c.Generate(context.Background(), "missing", "p")
	if !errors.Is(err, ollama.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_Generate_MalformedStreamFails(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{ this is : not json `))
	}, config.OllamaConfig{})

	if _, err := c.Generate(context.Background(), "m", "p"); err == nil {
		t.Fatal("expected malformed stream to fail")
	}
}

func TestClient_Generate_CanceledContextStopsRetries(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `busy`, http.StatusServiceUnavailable)
	}, config.OllamaConfig{Timeout: time.Second, Retries: 5, Backoff: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Generate(ctx, "m", "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("retries should stop when the context ends")
	}
}

func TestClient_CircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}, config.OllamaConfig{CircuitFailureThreshold: 2, CircuitReset: time.Minute})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Generate(ctx, "m", "p"); err == nil || errors.Is(err, ollama.ErrCircuitOpen) {
			t.Fatalf("call %d: expected upstream error, got %v", i+1, err)
		}
	}
	if _, err := c.Generate(ctx, "m", "p"); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if _, err := c.ListModels(ctx); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("expected ListModels to be refused, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("open circuit must not reach the server, got %d calls", calls.Load())
	}
}
