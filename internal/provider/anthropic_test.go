package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultClaudeModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"text": "the review"}},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})

	gen, err := c.GenerateText(context.Background(), TextRequest{Prompt: "review this"})
	require.NoError(t, err)
	assert.Equal(t, KindText, gen.Kind)
	assert.Equal(t, "the review", gen.Content)
	assert.Equal(t, defaultClaudeModel, gen.Metadata["model_used"])
}

func TestAnthropicGenerateTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "review"})
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "anthropic", perr.Provider)
	assert.Equal(t, http.StatusServiceUnavailable, perr.Status)
}

func TestAnthropicGenerateTextEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "review"})
	var perr *Error
	require.True(t, errors.As(err, &perr))
}
