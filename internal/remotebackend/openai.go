package remotebackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shellsage/shellsage/internal/backend"
	"github.com/shellsage/shellsage/internal/promptio"
	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

// OpenAICompatible speaks the OpenAI chat completions wire format:
// POST /v1/chat/completions, bearer-token auth, system+user messages.
type OpenAICompatible struct {
	httpBackend
	maxTokens int
}

// NewOpenAICompatible constructs a client against baseURL for model.
// token may be empty for servers that don't require auth. timeout <= 0
// uses the 30s default.
func NewOpenAICompatible(baseURL, model, token string, timeout time.Duration) *OpenAICompatible {
	return &OpenAICompatible{
		httpBackend: newHTTPBackend(baseURL, model, token, timeout),
		maxTokens:   256,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAICompatible) IsAvailable(ctx context.Context) bool {
	return o.probe(ctx, "/v1/models")
}

func (o *OpenAICompatible) Info() backend.Info {
	return backend.Info{Name: "remote-openai-compatible", Variant: "chat-completions", ModelID: o.modelName, Loaded: true}
}

func (o *OpenAICompatible) Shutdown() error { return nil }

func (o *OpenAICompatible) Generate(ctx context.Context, req shelldomain.Request) (shelldomain.GeneratedCommand, error) {
	system, user := promptio.RenderPrompt(req)
	return withRetry(ctx, "remotebackend.OpenAICompatible.Generate", func(ctx context.Context) (shelldomain.GeneratedCommand, bool, error) {
		return o.attempt(ctx, system, user)
	})
}

func (o *OpenAICompatible) attempt(ctx context.Context, system, user string) (shelldomain.GeneratedCommand, bool, error) {
	start := time.Now()
	body := chatCompletionsRequest{
		Model: o.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		MaxTokens:   o.maxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InternalErrorErr("remotebackend.OpenAICompatible.attempt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InternalErrorErr("remotebackend.OpenAICompatible.attempt", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return shelldomain.GeneratedCommand{}, true, shellerr.TimeoutErr("remotebackend.OpenAICompatible.attempt", err)
		}
		return shelldomain.GeneratedCommand{}, true, shellerr.BackendUnavailableErr("remotebackend.OpenAICompatible.attempt", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := isRetryableStatus(resp.StatusCode)
		kind := "server error"
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = "client error"
		}
		err := fmt.Errorf("%s: unexpected status %s", kind, resp.Status)
		if resp.StatusCode >= 500 {
			return shelldomain.GeneratedCommand{}, true, shellerr.InferenceFailureErr("remotebackend.OpenAICompatible.attempt", err)
		}
		if retryable {
			return shelldomain.GeneratedCommand{}, true, shellerr.NetworkFailureErr("remotebackend.OpenAICompatible.attempt", err)
		}
		return shelldomain.GeneratedCommand{}, false, shellerr.InferenceFailureErr("remotebackend.OpenAICompatible.attempt", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return shelldomain.GeneratedCommand{}, true, shellerr.NetworkFailureErr("remotebackend.OpenAICompatible.attempt", err)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InferenceFailureErr("remotebackend.OpenAICompatible.attempt", err)
	}
	if len(parsed.Choices) == 0 {
		return shelldomain.GeneratedCommand{}, false, shellerr.InferenceFailureErr("remotebackend.OpenAICompatible.attempt", fmt.Errorf("no choices in response"))
	}

	cmd, err := parseGeneratedText("remotebackend.OpenAICompatible.attempt", o.Info().Name, parsed.Choices[0].Message.Content, start)
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, err
	}
	return cmd, false, nil
}
