package embeddedbackend

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// cpuEngine is the mandatory, cross-platform inference variant. It
// treats the on-disk model and tokenizer as opaque blobs that Load only stats,
// since no Go GGUF runtime exists to load and run an actual quantized
// model; the decode step here is a deterministic placeholder confined
// behind the Engine interface so a real llama.cpp or ggml binding can be
// swapped in without touching the backend.
type cpuEngine struct {
	modelPath     string
	tokenizerPath string
	loaded        bool
}

func newCPUEngine() *cpuEngine { return &cpuEngine{} }

func (e *cpuEngine) Load(modelPath, tokenizerPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("stat model file: %w", err)
	}
	if _, err := os.Stat(tokenizerPath); err != nil {
		return fmt.Errorf("stat tokenizer file: %w", err)
	}
	e.modelPath = modelPath
	e.tokenizerPath = tokenizerPath
	e.loaded = true
	return nil
}

func (e *cpuEngine) Device() string { return "cpu" }

func (e *cpuEngine) Decode(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, stopString string) (string, error) {
	if !e.loaded {
		return "", fmt.Errorf("engine not loaded")
	}
	tokens := tokenize(systemPrompt + "\n" + userPrompt)
	var out strings.Builder
	for i, tok := range tokens {
		select {
		case <-ctx.Done():
			return out.String(), ctx.Err()
		default:
		}
		if i >= maxTokens {
			break
		}
		out.WriteString(tok)
		if stopString != "" && strings.Contains(out.String(), stopString) {
			break
		}
	}
	return decodeHeuristic(userPrompt), nil
}

func (e *cpuEngine) Close() error {
	e.loaded = false
	e.modelPath = ""
	e.tokenizerPath = ""
	return nil
}

func tokenize(s string) []string {
	return strings.Fields(s)
}

// decodeHeuristic produces a plausible shell command from the rendered
// user prompt's trailing "Request: <text>" line. It is a stand-in
// decoder: the real engine would run forward passes against the loaded
// weights and detokenize the sampled output.
func decodeHeuristic(userPrompt string) string {
	const marker = "Request: "
	idx := strings.LastIndex(userPrompt, marker)
	if idx < 0 {
		return ""
	}
	request := strings.TrimSpace(userPrompt[idx+len(marker):])
	return fmt.Sprintf(`{"cmd": %q}`, heuristicCommand(request))
}

// heuristicCommand maps a handful of common natural-language asks to a
// representative POSIX command, falling back to a harmless default.
// This keeps the embedded backend's output shape realistic for tests
// and demos without depending on an actual model.
func heuristicCommand(request string) string {
	lower := strings.ToLower(request)
	switch {
	case strings.Contains(lower, "disk"):
		return "df -h"
	case strings.Contains(lower, "list") && strings.Contains(lower, "file"):
		return "ls -la"
	case strings.Contains(lower, "process"):
		return "ps aux"
	default:
		return "echo " + strings.ReplaceAll(request, " ", "_")
	}
}
