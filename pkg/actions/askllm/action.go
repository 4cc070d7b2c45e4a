// Package askllm provides the ask-llm action: one chat completion request
// against an OpenAI-compatible API.
package askllm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/protocol"
)

const (
	defaultModel    = "gpt-4o"
	defaultBaseURL  = "https://api.openai.com/v1"
	requestTimeout  = 120 * time.Second
	envAPIKey       = "OPENAI_API_KEY"
	envBaseURL      = "OPENAI_BASE_URL"
	maxErrorPreview = 500
)

var (
	// ErrMissingPrompt is returned when the prompt input is absent or empty.
	ErrMissingPrompt = errors.New("prompt input is required")
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")
	// ErrEmptyCompletion is returned when the API answers without choices.
	ErrEmptyCompletion = errors.New("completion response contained no choices")
)

// ActionFactory creates Action instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "ask-llm"
}

func (*ActionFactory) Name() string {
	return "Ask LLM"
}

func (*ActionFactory) Description() string {
	return "Send a prompt to an OpenAI-compatible chat completion API and return the response."
}

func (*ActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return NewAction(), nil
}

func (*ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Ask LLM",
		Properties: map[string]*models.Property{
			"prompt": {
				Type:        "string",
				Description: "The prompt to send.",
			},
			"model": {
				Type:        "string",
				Default:     defaultModel,
				Description: "Model name passed to the API.",
			},
			"response": {
				Type:        "string",
				Description: "Output: the assistant's reply.",
			},
		},
		Required: []string{"prompt"},
	}
}

// Action sends one chat completion request. Transient HTTP failures surface
// as action failures; retry policy is left to the workflow author.
type Action struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewAction creates an Action configured from the process environment.
func NewAction() *Action {
	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Action{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  os.Getenv(envAPIKey),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Action) Execute(ctx context.Context, inputs map[string]any, execCtx protocol.ExecutionContext) (*protocol.ExecutionResult, error) {
	prompt, _ := inputs["prompt"].(string)
	if prompt == "" {
		return nil, ErrMissingPrompt
	}

	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	model, _ := inputs["model"].(string)
	if model == "" {
		model = defaultModel
	}

	logs := []string{fmt.Sprintf("Sending prompt to %s (%d chars)...", model, len(prompt))}

	response, err := a.complete(ctx, model, prompt)
	if err != nil {
		return &protocol.ExecutionResult{
			Status: models.StepStatusFailed,
			Error:  err.Error(),
			Logs:   append(logs, fmt.Sprintf("Completion failed: %v", err)),
		}, nil
	}

	return &protocol.ExecutionResult{
		Status:  models.StepStatusSuccess,
		Outputs: map[string]any{"response": response},
		Logs:    append(logs, fmt.Sprintf("Received response (%d chars).", len(response))),
	}, nil
}

func (a *Action) complete(ctx context.Context, model, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(bodyBytes, &completion); err != nil {
		return "", fmt.Errorf("parse completion response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		message := preview(string(bodyBytes))
		if completion.Error != nil {
			message = completion.Error.Message
		}

		return "", fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, message)
	}

	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return completion.Choices[0].Message.Content, nil
}

func preview(s string) string {
	if len(s) > maxErrorPreview {
		return s[:maxErrorPreview] + "..."
	}

	return s
}
