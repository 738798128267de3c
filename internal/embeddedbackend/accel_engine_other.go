//go:build !(darwin && arm64)

package embeddedbackend

// tryAcceleratedEngine reports no accelerated engine on platforms other
// than macOS+ARM64.
func tryAcceleratedEngine() Engine { return nil }
