package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/my-roadmap/roadmap-api/internal/model"
)

func testRoadmap() model.Roadmap {
	return model.Roadmap{
		TargetRole:    "Backend Engineer",
		TargetCompany: "Acme",
		Experience:    "4 years Go and MySQL",
		Focus:         "system design",
	}
}

func TestGenerateReturnsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(req.Messages))
			return
		}
		if !strings.Contains(req.Messages[1].Content, "Backend Engineer") ||
			!strings.Contains(req.Messages[1].Content, "Acme") {
			t.Errorf("user message missing request fields: %q", req.Messages[1].Content)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Week 1: fundamentals"}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	got, err := c.Generate(context.Background(), testRoadmap())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Week 1: fundamentals" {
		t.Errorf("content = %q", got)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	if _, err := c.Generate(context.Background(), testRoadmap()); err == nil {
		t.Fatal("want error on non-200 upstream answer")
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model")
	if _, err := c.Generate(context.Background(), testRoadmap()); err == nil {
		t.Fatal("want error on empty choices")
	}
}

func TestBuildPromptOmitsEmptyFields(t *testing.T) {
	got := buildPrompt(model.Roadmap{TargetRole: "SRE"})
	if strings.Contains(got, "Target company") || strings.Contains(got, "background") {
		t.Errorf("prompt includes empty fields: %q", got)
	}
	if !strings.Contains(got, "Target role: SRE") {
		t.Errorf("prompt missing role: %q", got)
	}
}
