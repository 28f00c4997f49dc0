// Package summarizer asks an OpenAI-compatible chat-completions endpoint for
// a narrative summary of an audit.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/models"
)

const (
	// FallbackText is returned whenever the model could not be reached or
	// answered with nothing usable.
	FallbackText = "LLM analysis failed. Please check logs for details."

	// DisabledText is returned when no endpoint is configured.
	DisabledText = "LLM summary disabled: no llm.endpoint configured."

	// TemplateName is the prompt file looked up in the prompt directory.
	TemplateName = "audit_prompt.md"

	// DefaultTemplate is used when the prompt file does not exist.
	DefaultTemplate = "# Audit Report\n\n## Analysis of {repo_name}\n\n{findings}"

	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 512
)

var stopTokens = []string{"</s>", "[INST]"}

// Summarizer turns an analysis into prose. Implementations never fail: any
// problem yields FallbackText.
type Summarizer interface {
	Summarize(ctx context.Context, ac models.AnalysisContext) string
	Close()
}

// Options configures the HTTP client.
type Options struct {
	Endpoint    string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	TopP        float64
	PromptDir   string
}

// Client talks to a chat-completions endpoint.
type Client struct {
	opts       Options
	template   string
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns a Client, or a no-op summarizer when opts has no endpoint.
// The prompt template is read once here.
func New(opts Options, logger *zap.Logger) (Summarizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.Endpoint) == "" {
		return Nop{}, nil
	}

	tmpl, err := LoadTemplate(opts.PromptDir)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")

	return &Client{
		opts:       opts,
		template:   tmpl,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}, nil
}

// LoadTemplate reads audit_prompt.md from dir, falling back to
// DefaultTemplate when the file is absent.
func LoadTemplate(dir string) (string, error) {
	if dir == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, TemplateName))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTemplate, nil
	}
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return string(data), nil
}

// RenderPrompt fills the {repo_name} and {findings} placeholders.
func RenderPrompt(tmpl string, ac models.AnalysisContext) (string, error) {
	findings, err := json.Marshal(ac.Payload())
	if err != nil {
		return "", fmt.Errorf("marshal findings: %w", err)
	}
	r := strings.NewReplacer(
		"{repo_name}", ac.Repository.Name,
		"{findings}", string(findings),
	)
	return r.Replace(tmpl), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize requests a summary. Failures are logged and yield FallbackText.
func (c *Client) Summarize(ctx context.Context, ac models.AnalysisContext) string {
	text, err := c.complete(ctx, ac)
	if err != nil {
		c.logger.Error("LLM generation failed", zap.Error(err))
		return FallbackText
	}
	return text
}

func (c *Client) complete(ctx context.Context, ac models.AnalysisContext) (string, error) {
	prompt, err := RenderPrompt(c.template, ac)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		Stop:        stopTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	c.logger.Debug("requesting summary",
		zap.String("endpoint", c.opts.Endpoint),
		zap.String("model", c.opts.Model),
		zap.Int("prompt_bytes", len(prompt)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}

	text := clean(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func clean(s string) string {
	for _, stop := range stopTokens {
		if i := strings.Index(s, stop); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// Nop is used when no endpoint is configured.
type Nop struct{}

// Summarize returns DisabledText.
func (Nop) Summarize(context.Context, models.AnalysisContext) string { return DisabledText }

// Close does nothing.
func (Nop) Close() {}
