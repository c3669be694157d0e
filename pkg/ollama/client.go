// Package ollama is a small client for a local Ollama server used to
// generate assessment content. It adds per-attempt timeouts, retries with
// linear backoff and a circuit breaker on top of the official API client.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/hireflow/internal/config"
)

var (
	ErrCircuitOpen   = errors.New("ollama circuit open")
	ErrModelNotFound = errors.New("ollama model not available")
)

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

type Client struct {
	api     *api.Client
	http    *http.Client
	cfg     config.OllamaConfig
	breaker *breaker
	closed  atomic.Bool
}

// GenerateResult is the concatenated model output plus call metadata.
type GenerateResult struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw"`
	Meta map[string]any  `json:"meta,omitempty"`
}

// ModelInfo is a lightweight model descriptor returned by ListModels.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	logger.Info("ollama client ready", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &Client{
		api:     api.NewClient(u, httpClient),
		http:    httpClient,
		cfg:     cfg,
		breaker: newBreaker(cfg.CircuitFailureThreshold, cfg.CircuitReset),
	}, nil
}

// NewDefaultClient uses a pooled transport with dial and TLS timeouts.
func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	return NewClient(cfg, &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	})
}

// Close releases idle connections on the underlying transport. It is
// idempotent.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.http != nil && c.http.Transport != nil {
		if tr, ok := c.http.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// ListModels returns the locally available models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if !c.breaker.allow() {
		return nil, ErrCircuitOpen
	}
	resp, err := c.api.List(ctx)
	if err != nil {
		c.breaker.failure()
		return nil, err
	}
	c.breaker.success()

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}
	return out, nil
}

// Health checks that the server answers and has at least one model.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		return fmt.Errorf("health check failed: %w", ErrModelNotFound)
	}
	return nil
}

// EnsureModel fails with ErrModelNotFound unless model is pulled. A name
// without a tag matches any tag of that model.
func (c *Client) EnsureModel(ctx context.Context, model string) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == model || (!strings.Contains(model, ":") && strings.HasPrefix(m.Name, model+":")) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", model, ErrModelNotFound)
}

// Generate returns the model's free-form answer to prompt.
func (c *Client) Generate(ctx context.Context, model, prompt string) (GenerateResult, error) {
	return c.generate(ctx, c.request(model, prompt, nil))
}

// GenerateStructured constrains the answer to the given JSON schema. A nil
// schema only asks for JSON.
func (c *Client) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage) (GenerateResult, error) {
	format := schema
	if len(format) == 0 {
		format = json.RawMessage(`"json"`)
	}
	return c.generate(ctx, c.request(model, prompt, format))
}

func (c *Client) request(model, prompt string, format json.RawMessage) *api.GenerateRequest {
	req := &api.GenerateRequest{Model: model, Prompt: prompt, Format: format}
	if c.cfg.Temperature > 0 {
		req.Options = map[string]any{"temperature": c.cfg.Temperature}
	}
	return req
}

func (c *Client) generate(ctx context.Context, req *api.GenerateRequest) (GenerateResult, error) {
	log := logger.With(slog.String("model", req.Model))

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return GenerateResult{}, ctx.Err()
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
		}
		if !c.breaker.allow() {
			return GenerateResult{}, ErrCircuitOpen
		}

		res, err := c.once(ctx, req)
		if err == nil {
			c.breaker.success()
			res.Meta["attempts"] = attempt + 1
			return res, nil
		}
		if ctx.Err() != nil {
			return GenerateResult{}, ctx.Err()
		}

		var status api.StatusError
		if errors.As(err, &status) && status.StatusCode < http.StatusInternalServerError {
			// the request itself is wrong; retrying cannot help
			if status.StatusCode == http.StatusNotFound {
				return GenerateResult{}, fmt.Errorf("%s: %w: %v", req.Model, ErrModelNotFound, err)
			}
			return GenerateResult{}, fmt.Errorf("generate rejected: %w", err)
		}

		lastErr = err
		c.breaker.failure()
		log.Warn("ollama generate attempt failed", slog.Int("attempt", attempt+1), slog.Any("err", err))
	}

	return GenerateResult{}, fmt.Errorf("generate failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

// once runs a single streamed generation under the per-attempt timeout.
func (c *Client) once(ctx context.Context, req *api.GenerateRequest) (GenerateResult, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var (
		text  strings.Builder
		final api.GenerateResponse
	)
	start := time.Now()
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		final = r
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	raw, _ := json.Marshal(final)
	return GenerateResult{
		Text: text.String(),
		Raw:  raw,
		Meta: map[string]any{
			"model":      req.Model,
			"latency_ms": time.Since(start).Milliseconds(),
			"eval_count": final.EvalCount,
		},
	}, nil
}
