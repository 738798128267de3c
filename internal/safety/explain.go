package safety

import (
	"fmt"
	"strings"

	"github.com/shellsage/shellsage/internal/shelldomain"
)

// blockReason and flagReason render a renderer-independent summary of
// why Validate reached its verdict: the risk level plus every matched
// pattern's name, in the order patterns matched. A caller building a
// user-facing message (the CLI edge, a future TUI) can use this
// directly instead of re-deriving it from MatchedPatterns.
func blockReason(risk shelldomain.Risk, matched []shelldomain.MatchedPattern) string {
	return fmt.Sprintf("blocked: %s risk, matched %s", risk, patternNames(matched))
}

func flagReason(risk shelldomain.Risk, matched []shelldomain.MatchedPattern) string {
	return fmt.Sprintf("flagged: %s risk, matched %s", risk, patternNames(matched))
}

func patternNames(matched []shelldomain.MatchedPattern) string {
	names := make([]string, len(matched))
	for i, m := range matched {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// Explain renders a multi-line, categorized breakdown of a validation
// result: one line per matched pattern naming its category and risk,
// suitable for a CLI or log line without any further lookup.
func Explain(result shelldomain.ValidationResult) string {
	if len(result.MatchedPatterns) == 0 {
		return "no risky patterns matched"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "risk=%s blocked=%t\n", result.Risk, result.Blocked)
	for _, m := range result.MatchedPatterns {
		fmt.Fprintf(&b, "- %s (%s, %s): %s\n", m.Name, m.Category, m.Risk, m.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
