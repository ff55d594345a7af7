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
	openAIName          = "openai"
	defaultOpenAIBase   = "https://api.openai.com"
	defaultChatModel    = "gpt-4"
	defaultImageModel   = "dall-e-3"
	defaultImageSize    = "1024x1024"
	defaultImageQual    = "hd"
	defaultOpenAITokens = 2000
)

type OpenAIConfig struct {
	APIKey        string
	BaseURL       string // override for tests
	Timeout       time.Duration
	MaxConcurrent int
}

// OpenAIClient calls the chat-completions and image-generation APIs.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	sem     limiter
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		httpc:   &http.Client{Timeout: timeout},
		sem:     newLimiter(cfg.MaxConcurrent),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) GenerateText(ctx context.Context, req TextRequest) (*Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAITokens
	}

	body := chatRequest{
		Model:     defaultChatModel,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}

	var out chatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Provider: openAIName, Err: fmt.Errorf("empty choices in response")}
	}

	content := out.Choices[0].Message.Content
	return &Generation{
		Kind:    KindText,
		Content: content,
		Metadata: map[string]any{
			"model_used": defaultChatModel,
			"word_count": len(strings.Fields(content)),
		},
		QualityScore: DefaultQualityScore,
	}, nil
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) (*Generation, error) {
	size := req.Size
	if size == "" {
		size = defaultImageSize
	}
	quality := req.Quality
	if quality == "" {
		quality = defaultImageQual
	}

	body := imageRequest{
		Model:   defaultImageModel,
		Prompt:  req.Prompt,
		N:       1,
		Size:    size,
		Quality: quality,
	}

	var out imageResponse
	if err := c.post(ctx, "/v1/images/generations", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, &Error{Provider: openAIName, Err: fmt.Errorf("no image url in response")}
	}

	return &Generation{
		Kind:    KindImage,
		FileURL: out.Data[0].URL,
		Metadata: map[string]any{
			"model_used": defaultImageModel,
			"dimensions": size,
		},
		QualityScore: DefaultQualityScore,
	}, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, in, out any) error {
	if err := c.sem.acquire(ctx); err != nil {
		return &Error{Provider: openAIName, Err: err}
	}
	defer c.sem.release()

	payload, err := json.Marshal(in)
	if err != nil {
		return &Error{Provider: openAIName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Provider: openAIName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	observability.ProviderRequestDuration.WithLabelValues(openAIName).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(openAIName, "error").Inc()
		return &Error{Provider: openAIName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.ProviderRequestsTotal.WithLabelValues(openAIName, "error").Inc()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Provider: openAIName, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(b)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(openAIName, "error").Inc()
		return &Error{Provider: openAIName, Err: fmt.Errorf("decode response: %w", err)}
	}

	observability.ProviderRequestsTotal.WithLabelValues(openAIName, "ok").Inc()
	return nil
}
