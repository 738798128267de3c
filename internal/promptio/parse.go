package promptio

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shellsage/shellsage/internal/shellerr"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	backtickRe    = regexp.MustCompile("`([^`\\n]+)`")
	jsonMarkerRe  = regexp.MustCompile(`[{}\[\]"]`)
)

type cmdPayload struct {
	Cmd string `json:"cmd"`
}

// ParseCommand runs an ordered chain of extraction strategies, stopping
// at the first one that yields a normalizable single-line command.
// Failure is ResponseUnparseable carrying the raw text.
func ParseCommand(raw string) (string, error) {
	strategies := []func(string) (string, bool){
		parseWholeJSON,
		parseFencedJSON,
		parseBalancedBraces,
		parseFirstBacktick,
		parseFirstPlainLine,
	}

	for _, strategy := range strategies {
		if cmd, ok := strategy(raw); ok {
			if normalized, ok := normalize(cmd); ok {
				return normalized, nil
			}
		}
	}
	return "", shellerr.ResponseUnparseableErr("promptio.ParseCommand", rawTextError(raw))
}

type rawTextErr struct{ raw string }

func (e rawTextErr) Error() string { return "could not extract a command from: " + e.raw }

func rawTextError(raw string) error { return rawTextErr{raw: raw} }

func parseWholeJSON(raw string) (string, bool) {
	return extractCmdFromJSON(strings.TrimSpace(raw))
}

func parseFencedJSON(raw string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return extractCmdFromJSON(strings.TrimSpace(m[1]))
}

func parseBalancedBraces(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return extractCmdFromJSON(raw[start : i+1])
			}
		}
	}
	return "", false
}

func parseFirstBacktick(raw string) (string, bool) {
	m := backtickRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func parseFirstPlainLine(raw string) (string, bool) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if jsonMarkerRe.MatchString(line) {
			continue
		}
		return line, true
	}
	return "", false
}

func extractCmdFromJSON(s string) (string, bool) {
	var payload cmdPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return "", false
	}
	if payload.Cmd == "" {
		return "", false
	}
	return payload.Cmd, true
}

// normalize applies the shared post-processing every strategy must
// pass through: trim, reject empty/NUL, collapse an accepted
// backslash-newline continuation, and reject any remaining line break.
func normalize(cmd string) (string, bool) {
	cmd = strings.ReplaceAll(cmd, "\\\n", "")
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", false
	}
	if strings.ContainsRune(cmd, 0) {
		return "", false
	}
	if strings.ContainsAny(cmd, "\n\r") {
		return "", false
	}
	return cmd, true
}
