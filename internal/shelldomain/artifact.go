package shelldomain

// CachedArtifact describes one content-addressed entry in the model
// artifact cache's manifest.
type CachedArtifact struct {
	ID             string `json:"id"`
	AbsolutePath   string `json:"absolutePath"`
	SizeBytes      int64  `json:"sizeBytes"`
	SHA256Hex      string `json:"sha256"`
	LastAccessUnix int64  `json:"lastAccessUnix"`
	Pinned         bool   `json:"pinned"`
}

// Manifest is the authoritative JSON index of cached artifacts. The
// cache package owns serialization; this type is the in-memory shape
// shared with callers that only need to read it (e.g. stats reporting).
type Manifest struct {
	Version int                       `json:"version"`
	Entries map[string]CachedArtifact `json:"entries"`
}

// TotalSize returns the sum of SizeBytes across every entry.
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, e := range m.Entries {
		total += e.SizeBytes
	}
	return total
}
