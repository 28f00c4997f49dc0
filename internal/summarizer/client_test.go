package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/codespectre/internal/models"
)

func sampleContext() models.AnalysisContext {
	return models.AnalysisContext{
		Repository: models.RepositorySnapshot{Name: "demo", URL: "https://github.com/org/demo", DefaultBranch: "main"},
		Analysis: models.AnalysisResult{Files: []models.FileAnalysis{{
			FilePath: "bad.py",
			Language: "python",
			PerTool: []models.ToolOutcome{{
				Tool:     "bandit",
				Findings: []models.Finding{{Severity: models.SeverityHigh, Message: "subprocess call with shell=True", RuleID: "B602"}},
			}},
		}}},
	}
}

func TestNewWithoutEndpointIsNop(t *testing.T) {
	s, err := New(Options{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Summarize(context.Background(), sampleContext()); got != DisabledText {
		t.Errorf("Summarize = %q", got)
	}
	s.Close()
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadTemplate(dir)
	if err != nil || got != DefaultTemplate {
		t.Fatalf("missing file: got %q, %v", got, err)
	}

	custom := "Review {repo_name}:\n{findings}\n"
	if err := os.WriteFile(filepath.Join(dir, TemplateName), []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = LoadTemplate(dir)
	if err != nil || got != custom {
		t.Fatalf("custom file: got %q, %v", got, err)
	}
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt(DefaultTemplate, sampleContext())
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if !strings.Contains(prompt, "## Analysis of demo") {
		t.Errorf("repo name not substituted: %s", prompt)
	}
	if !strings.Contains(prompt, `"B602"`) || !strings.Contains(prompt, `"file_path":"bad.py"`) {
		t.Errorf("findings not substituted: %s", prompt)
	}
	if strings.Contains(prompt, "{findings}") {
		t.Error("placeholder left in prompt")
	}
}

func TestSummarizeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Model != "local-model" || req.MaxTokens != 256 {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "demo") {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{"role": "assistant", "content": "  Overall fine.\n</s> trailing"},
			}},
		})
	}))
	defer ts.Close()

	s, err := New(Options{Endpoint: ts.URL + "/", Model: "local-model", APIKey: "sk-test", MaxTokens: 256}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if got := s.Summarize(context.Background(), sampleContext()); got != "Overall fine." {
		t.Errorf("Summarize = %q", got)
	}
}

func TestSummarizeFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"no choices", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"empty content", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			core, logs := observer.New(zapcore.ErrorLevel)
			s, err := New(Options{Endpoint: ts.URL}, zap.New(core))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer s.Close()

			if got := s.Summarize(context.Background(), sampleContext()); got != FallbackText {
				t.Errorf("Summarize = %q", got)
			}
			if logs.FilterMessage("LLM generation failed").Len() != 1 {
				t.Errorf("expected one error log, got %d", logs.Len())
			}
		})
	}
}

func TestSummarizeUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	s, err := New(Options{Endpoint: url}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Summarize(context.Background(), sampleContext()); got != FallbackText {
		t.Errorf("Summarize = %q", got)
	}
}
