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

// LocalGenerateAPI speaks the second JSON generate wire format: POST
// /api/generate with a single prompt string and stream: false, no
// authentication, a generated-text field in the response. Modeled on
// the Ollama-shaped local model server API.
type LocalGenerateAPI struct {
	httpBackend
}

// NewLocalGenerateAPI constructs a client against baseURL for model.
func NewLocalGenerateAPI(baseURL, model string, timeout time.Duration) *LocalGenerateAPI {
	return &LocalGenerateAPI{httpBackend: newHTTPBackend(baseURL, model, "", timeout)}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (l *LocalGenerateAPI) IsAvailable(ctx context.Context) bool {
	return l.probe(ctx, "/api/tags")
}

func (l *LocalGenerateAPI) Info() backend.Info {
	return backend.Info{Name: "remote-local-api", Variant: "generate", ModelID: l.modelName, Loaded: true}
}

func (l *LocalGenerateAPI) Shutdown() error { return nil }

func (l *LocalGenerateAPI) Generate(ctx context.Context, req shelldomain.Request) (shelldomain.GeneratedCommand, error) {
	_, user := promptio.RenderPrompt(req)
	return withRetry(ctx, "remotebackend.LocalGenerateAPI.Generate", func(ctx context.Context) (shelldomain.GeneratedCommand, bool, error) {
		return l.attempt(ctx, user)
	})
}

func (l *LocalGenerateAPI) attempt(ctx context.Context, prompt string) (shelldomain.GeneratedCommand, bool, error) {
	start := time.Now()
	body := generateRequest{Model: l.modelName, Prompt: prompt, Stream: false}
	payload, err := json.Marshal(body)
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InternalErrorErr("remotebackend.LocalGenerateAPI.attempt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InternalErrorErr("remotebackend.LocalGenerateAPI.attempt", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return shelldomain.GeneratedCommand{}, true, shellerr.TimeoutErr("remotebackend.LocalGenerateAPI.attempt", err)
		}
		return shelldomain.GeneratedCommand{}, true, shellerr.BackendUnavailableErr("remotebackend.LocalGenerateAPI.attempt", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := isRetryableStatus(resp.StatusCode)
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 500 {
			return shelldomain.GeneratedCommand{}, true, shellerr.InferenceFailureErr("remotebackend.LocalGenerateAPI.attempt", err)
		}
		if retryable {
			return shelldomain.GeneratedCommand{}, true, shellerr.NetworkFailureErr("remotebackend.LocalGenerateAPI.attempt", err)
		}
		return shelldomain.GeneratedCommand{}, false, shellerr.InferenceFailureErr("remotebackend.LocalGenerateAPI.attempt", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return shelldomain.GeneratedCommand{}, true, shellerr.NetworkFailureErr("remotebackend.LocalGenerateAPI.attempt", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return shelldomain.GeneratedCommand{}, false, shellerr.InferenceFailureErr("remotebackend.LocalGenerateAPI.attempt", err)
	}

	cmd, err := parseGeneratedText("remotebackend.LocalGenerateAPI.attempt", l.Info().Name, parsed.Response, start)
	if err != nil {
		return shelldomain.GeneratedCommand{}, false, err
	}
	return cmd, false, nil
}
