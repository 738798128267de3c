package shelldomain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCommandBytes is the hard ceiling on a generated (or validated)
// command line's length, per the wire contract.
const MaxCommandBytes = 4096

// GeneratedCommand is the single candidate command produced for a
// Request by whichever backend served it.
type GeneratedCommand struct {
	CommandText  string
	BackendLabel string
	Risk         Risk
	RawResponse  string
	Duration     time.Duration
}

// Validate enforces the wire-level invariants on CommandText: it must be
// non-empty, a single line, valid UTF-8, and no more than MaxCommandBytes
// bytes long.
func (g GeneratedCommand) Validate() error {
	if g.CommandText == "" {
		return fmt.Errorf("command text is empty")
	}
	if strings.ContainsAny(g.CommandText, "\n\r") {
		return fmt.Errorf("command text contains a line break")
	}
	if !utf8.ValidString(g.CommandText) {
		return fmt.Errorf("command text is not valid UTF-8")
	}
	if len(g.CommandText) > MaxCommandBytes {
		return fmt.Errorf("command text exceeds %d bytes", MaxCommandBytes)
	}
	return nil
}

// MatchedPattern is one safety-catalogue rule that fired against a
// command's executable context.
type MatchedPattern struct {
	Name        string
	Category    string
	Description string
	Risk        Risk
}

// ValidationResult is the validator's verdict on a single command.
type ValidationResult struct {
	Risk            Risk
	MatchedPatterns []MatchedPattern
	Reason          string
	Blocked         bool
}
