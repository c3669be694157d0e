package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garnizeh/hireflow/api"
)

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name   string
		db     api.Pinger
		status int
		want   string
	}{
		{"NoDB", nil, http.StatusOK, "ok"},
		{"DBUp", pinger{}, http.StatusOK, "ok"},
		{"DBDown", pinger{err: errors.New("database is locked")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := &api.SystemHandler{DB: c.db}
			w := httptest.NewRecorder()
			h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != c.status {
				t.Fatalf("expected %d, got %d", c.status, w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != c.want || body["service"] != "hireflow" {
				t.Fatalf("unexpected body %v", body)
			}
			if c.want == "degraded" && body["database"] != "database is locked" {
				t.Fatalf("expected ping error in body, got %v", body)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	w := httptest.NewRecorder()
	(&api.SystemHandler{}).VersionHandler("1.2.3", "2026-10-01T00:00:00Z")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "1.2.3" || body["buildTime"] != "2026-10-01T00:00:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
}
