package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataverse-agent/internal/common/config"
	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/retrieval"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(config.OpenAIConfig{
		Endpoint:    srv.URL,
		APIKey:      "test-key",
		Deployment:  "gpt-4",
		APIVersion:  "2024-02-15-preview",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     5000,
	}, logger.NewTestLogger(t))
}

func completionResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": text}},
		},
	}
}

func TestComplete(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-15-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(completionResponse("There are 42 accounts."))
	}))
	defer srv.Close()

	answer, err := testClient(t, srv).Complete(context.Background(), "How many accounts?")
	require.NoError(t, err)
	assert.Equal(t, "There are 42 accounts.", answer)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "How many accounts?", captured.Messages[1].Content)
	assert.Equal(t, 500, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 0.001)
}

func TestComplete_EmptyTextFallsBack(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"whitespace content", completionResponse("   \n")},
		{"no choices", map[string]interface{}{"choices": []interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			answer, err := testClient(t, srv).Complete(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, fallbackAnswer, answer)
		})
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Complete(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCompletionFailed))
}

func TestBuildPrompt(t *testing.T) {
	t.Run("grounded", func(t *testing.T) {
		p := BuildPrompt(retrieval.Result{Found: true, Context: "[account] 2 record(s)"}, "How many accounts?")
		assert.Contains(t, p, "Context from knowledge base:\n[account] 2 record(s)")
		assert.Contains(t, p, "User Question: How many accounts?")
	})

	t.Run("degraded", func(t *testing.T) {
		p := BuildPrompt(retrieval.Result{Found: false, Context: retrieval.Sentinel}, "How many accounts?")
		assert.Contains(t, p, "No relevant data was found")
		assert.NotContains(t, p, "Context from knowledge base")
	})
}
