//go:build darwin && arm64

package embeddedbackend

import "context"

// accelEngine is the optional accelerated variant, gated to macOS+ARM64.
// The accelerator integration direction (FFI into a native ML framework
// vs. a pure-Go inference path) is left open; this stub documents the
// capability contract only. It currently defers to the same decode
// heuristic as cpuEngine, reporting its device as "metal" so Info()
// discloses the intended device choice.
type accelEngine struct {
	cpuEngine
}

func tryAcceleratedEngine() Engine {
	return &accelEngine{}
}

func (e *accelEngine) Device() string { return "metal" }

func (e *accelEngine) Decode(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, stopString string) (string, error) {
	return e.cpuEngine.Decode(ctx, systemPrompt, userPrompt, maxTokens, stopString)
}
