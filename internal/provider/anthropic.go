package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wishory-lab/aiworkground/internal/observability"
)

const (
	anthropicName        = "anthropic"
	defaultAnthropicBase = "https://api.anthropic.com"
	defaultClaudeModel   = "claude-3-sonnet-20240229"
	anthropicVersion     = "2023-06-01"
	defaultClaudeTokens  = 1500
)

type AnthropicConfig struct {
	APIKey        string
	BaseURL       string // override for tests
	Timeout       time.Duration
	MaxConcurrent int
}

// AnthropicClient calls the messages API.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	sem     limiter
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		httpc:   &http.Client{Timeout: timeout},
		sem:     newLimiter(cfg.MaxConcurrent),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) GenerateText(ctx context.Context, req TextRequest) (*Generation, error) {
	if err := c.sem.acquire(ctx); err != nil {
		return nil, &Error{Provider: anthropicName, Err: err}
	}
	defer c.sem.release()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeTokens
	}

	body := anthropicRequest{
		Model:     defaultClaudeModel,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: anthropicName, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: anthropicName, Err: err}
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	observability.ProviderRequestDuration.WithLabelValues(anthropicName).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(anthropicName, "error").Inc()
		return nil, &Error{Provider: anthropicName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.ProviderRequestsTotal.WithLabelValues(anthropicName, "error").Inc()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Provider: anthropicName, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(b)))}
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(anthropicName, "error").Inc()
		return nil, &Error{Provider: anthropicName, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Content) == 0 {
		observability.ProviderRequestsTotal.WithLabelValues(anthropicName, "error").Inc()
		return nil, &Error{Provider: anthropicName, Err: fmt.Errorf("empty content in response")}
	}

	observability.ProviderRequestsTotal.WithLabelValues(anthropicName, "ok").Inc()
	return &Generation{
		Kind:    KindText,
		Content: out.Content[0].Text,
		Metadata: map[string]any{
			"model_used": defaultClaudeModel,
		},
		QualityScore: DefaultQualityScore,
	}, nil
}
