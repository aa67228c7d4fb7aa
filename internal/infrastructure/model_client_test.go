package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bossjones/boss-bot/internal/domain"
)

func newTestModelClient(t *testing.T, serverURL string) *OpenAIModelClient {
	t.Helper()
	t.Setenv("TEST_MODEL_API_KEY", "test-key")
	return NewOpenAIModelClient(domain.AIConfig{
		BaseURL:     serverURL,
		Model:       "test-model",
		APIKeyEnv:   "TEST_MODEL_API_KEY",
		Temperature: 0,
	}, zap.NewNop())
}

func TestOpenAIModelClient_Complete(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  {\"strategy\": \"youtube\"}  "}},
			},
		})
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	reply, err := client.Complete(context.Background(), "pick a strategy")

	require.NoError(t, err)
	assert.Equal(t, `{"strategy": "youtube"}`, reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "pick a strategy", gotBody.Messages[0].Content)
}

func TestOpenAIModelClient_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIModelClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAIModelClient_HonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, "prompt")

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
