// Package ids generates short random identifiers for correlating a
// single generate request across logs, error messages and retries.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a 16-byte random hex identifier prefixed "req-", suitable
// for tagging a single generate request end to end.
func New() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return "req-" + hex.EncodeToString(b[:]), nil
}
