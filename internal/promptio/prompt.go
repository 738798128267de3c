// Package promptio renders the system+user prompt asking a backend to
// emit a single JSON command, and parses that backend's raw text back
// into a single candidate command line: shape text for a fixed, simple
// consumer, then fall back through looser variants when the precise
// shape doesn't match.
package promptio

import (
	"fmt"
	"strings"

	"github.com/shellsage/shellsage/internal/shelldomain"
)

const systemPrompt = `You translate a short natural-language request into exactly one ` +
	`POSIX-compatible shell command for the user's target shell. ` +
	`Respond with a single JSON object of the form {"cmd": "<command>"} ` +
	`and nothing else: no prose, no markdown fences unless explicitly ` +
	`requested, no explanation.`

// RenderPrompt builds the system and user messages for req. The user
// message never carries secrets: RequestContext has already filtered
// them out by the time it reaches here.
func RenderPrompt(req shelldomain.Request) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Shell: %s\n", req.TargetShell)
	fmt.Fprintf(&b, "Safety level: %s\n", req.SafetyLevel)
	if req.Context.CWD != "" {
		fmt.Fprintf(&b, "Working directory: %s\n", req.Context.CWD)
	}
	if req.Context.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", req.Context.Platform)
	}
	fmt.Fprintf(&b, "Request: %s\n", req.UserText)
	return systemPrompt, b.String()
}
