package safety

import "github.com/shellsage/shellsage/internal/shellerr"

// stripQuoteDelimiters returns a copy of s with every quote character
// that opens or closes a single- or double-quoted span replaced by a
// space, while leaving the quoted text itself untouched. Quoting is a
// syntactic convenience, not a safety boundary: `rm -rf '/'` deletes
// the filesystem root exactly as `rm -rf /` does, so the catalogue
// must see the literal path either way. Only the delimiter runes are
// blanked, never the content between them, precisely so a catalogue
// pattern's own optional-quote groups (`(['"]?)`) can match a quoted
// dangerous argument without the quoting hiding it first. Backslash
// escapes outside quotes are left untouched (they remain executable);
// inside double quotes a backslash escapes the following rune without
// closing the quote; single quotes never process escapes. An
// unbalanced quote yields PolicyDenied.
func stripQuoteDelimiters(s string) (string, error) {
	const (
		stateNone = iota
		stateSingle
		stateDouble
	)

	runes := []rune(s)
	out := make([]rune, len(runes))
	copy(out, runes)

	state := stateNone
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch state {
		case stateNone:
			switch r {
			case '\'':
				out[i] = ' '
				state = stateSingle
				i++
			case '"':
				out[i] = ' '
				state = stateDouble
				i++
			case '\\':
				i += 2
				if i > len(runes) {
					i = len(runes)
				}
			default:
				i++
			}
		case stateSingle:
			if r == '\'' {
				out[i] = ' '
				state = stateNone
			}
			i++
		case stateDouble:
			if r == '\\' && i+1 < len(runes) {
				i += 2
				continue
			}
			if r == '"' {
				out[i] = ' '
				state = stateNone
			}
			i++
		}
	}

	if state != stateNone {
		return "", shellerr.PolicyDeniedErr("validate: unbalanced quotes", nil)
	}
	return string(out), nil
}
