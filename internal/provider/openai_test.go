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

func TestOpenAIGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultChatModel, req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello world from the model"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	gen, err := c.GenerateText(context.Background(), TextRequest{System: "sys", Prompt: "write"})
	require.NoError(t, err)
	assert.Equal(t, KindText, gen.Kind)
	assert.Equal(t, "hello world from the model", gen.Content)
	assert.Equal(t, 5, gen.Metadata["word_count"])
	assert.Equal(t, DefaultQualityScore, gen.QualityScore)
}

func TestOpenAIGenerateTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "write"})
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "openai", perr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
}

func TestOpenAIGenerateTextEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "write"})
	var perr *Error
	require.True(t, errors.As(err, &perr))
}

func TestOpenAIGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)

		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultImageModel, req.Model)
		assert.Equal(t, 1, req.N)
		assert.Equal(t, defaultImageSize, req.Size)
		assert.Equal(t, defaultImageQual, req.Quality)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"url": "https://images.example.com/logo.png"}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	gen, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a logo"})
	require.NoError(t, err)
	assert.Equal(t, KindImage, gen.Kind)
	assert.Equal(t, "https://images.example.com/logo.png", gen.FileURL)
	assert.Equal(t, defaultImageSize, gen.Metadata["dimensions"])
}

func TestOpenAICancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateText(ctx, TextRequest{Prompt: "write"})
	var perr *Error
	require.True(t, errors.As(err, &perr))
}
