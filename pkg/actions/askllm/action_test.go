package askllm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

func testAction(baseURL string) *Action {
	return &Action{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		apiKey:  "test-key",
	}
}

func TestExecuteSuccess(t *testing.T) {
	var captured chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "42"}},
			},
		})
	}))
	defer server.Close()

	result, err := testAction(server.URL).Execute(context.Background(), map[string]any{
		"prompt": "What is the answer?",
	}, protocol.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSuccess, result.Status)
	assert.Equal(t, "42", result.Outputs["response"])

	assert.Equal(t, defaultModel, captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "What is the answer?", captured.Messages[0].Content)
}

func TestExecuteCustomModel(t *testing.T) {
	var captured chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	_, err := testAction(server.URL).Execute(context.Background(), map[string]any{
		"prompt": "hi",
		"model":  "gpt-4o-mini",
	}, protocol.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
}

func TestExecuteMissingPrompt(t *testing.T) {
	_, err := testAction("http://unused").Execute(context.Background(), map[string]any{}, protocol.ExecutionContext{})
	assert.ErrorIs(t, err, ErrMissingPrompt)
}

func TestExecuteMissingAPIKey(t *testing.T) {
	action := testAction("http://unused")
	action.apiKey = ""

	_, err := action.Execute(context.Background(), map[string]any{
		"prompt": "hi",
	}, protocol.ExecutionContext{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestExecuteAPIErrorIsFailedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited"},
		})
	}))
	defer server.Close()

	result, err := testAction(server.URL).Execute(context.Background(), map[string]any{
		"prompt": "hi",
	}, protocol.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, result.Status)
	assert.Contains(t, result.Error, "status 429")
	assert.Contains(t, result.Error, "rate limited")
}

func TestExecuteEmptyChoicesIsFailedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	result, err := testAction(server.URL).Execute(context.Background(), map[string]any{
		"prompt": "hi",
	}, protocol.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusFailed, result.Status)
	assert.Contains(t, result.Error, ErrEmptyCompletion.Error())
}
