// Package embeddedbackend implements the local, in-process inference
// backend: lazy model load via the artifact cache, device selection
// between a mandatory CPU engine and an optional accelerated engine, and
// a cancellable token-generation loop. Its long-lived-resource lifecycle
// (mutex-guarded handle, idempotent Close) follows the same discipline
// as other guarded resources in this module. Engine is a from-scratch
// abstraction, documented in DESIGN.md, since no Go GGUF/ML inference
// runtime exists in the surrounding ecosystem to wire instead.
package embeddedbackend

import (
	"context"
	"fmt"

	"github.com/shellsage/shellsage/internal/shellerr"
)

// Engine is the minimal capability a quantized-model runtime must offer
// the backend: load weights + tokenizer from their local file paths, turn prompt
// text into output text subject to stop conditions, and release
// resources. Two engines implement it: cpuEngine (always available) and
// an accelerated engine gated to darwin/arm64 by build tags.
type Engine interface {
	// Load opens the model file and the tokenizer file, both already
	// resolved to local paths by the caller.
	Load(modelPath, tokenizerPath string) error

	// Decode runs tokenization, a blocking forward-pass loop, and
	// detokenization, stopping at maxTokens, an EOS token or stopString,
	// whichever comes first. It must poll ctx between token steps.
	Decode(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, stopString string) (string, error)

	// Device names the compute device actually in use (e.g. "cpu",
	// "metal"), for Info()'s device-choice disclosure.
	Device() string

	// Close releases the loaded model and tokenizer. Idempotent.
	Close() error
}

// DefaultMaxOutputTokens is the contract's documented default stop
// condition when a caller doesn't override it.
const DefaultMaxOutputTokens = 256

// newCapableEngine returns the accelerated engine when the current
// platform and build both support it, else the CPU engine. Exactly one
// of these two constructors is compiled in per platform via build tags.
func newCapableEngine() Engine {
	if eng := tryAcceleratedEngine(); eng != nil {
		return eng
	}
	return newCPUEngine()
}

func wrapLoadError(op string, err error) error {
	if err == nil {
		return nil
	}
	return shellerr.ModelLoadFailureErr(op, err)
}

func wrapInferenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return shellerr.InferenceFailureErr(op, err)
}

// emptyDecodeError reports an empty decoded string as ResponseUnparseable.
func emptyDecodeError(op string) error {
	return shellerr.ResponseUnparseableErr(op, fmt.Errorf("decoded output was empty"))
}
