package artifactcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shellsage/shellsage/internal/shellerr"
)

const manifestVersion = 1

// manifestFile is the on-disk JSON shape documented in the wire format
// section: {"version":1,"entries":{"<id>": {...}}}.
type manifestFile struct {
	Version int                        `json:"version"`
	Entries map[string]manifestEntry   `json:"entries"`
}

type manifestEntry struct {
	Filename       string `json:"filename"`
	SizeBytes      int64  `json:"size_bytes"`
	SHA256         string `json:"sha256"`
	LastAccessUnix int64  `json:"last_access_unix"`
	Pinned         bool   `json:"pinned"`
}

func loadManifest(path string) (manifestFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return manifestFile{Version: manifestVersion, Entries: map[string]manifestEntry{}}, nil
	}
	if err != nil {
		return manifestFile{}, shellerr.InternalErrorErr("cache.loadManifest", err)
	}
	if len(data) == 0 {
		return manifestFile{Version: manifestVersion, Entries: map[string]manifestEntry{}}, nil
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return manifestFile{}, shellerr.ConfigInvalidErr("cache.loadManifest", fmt.Errorf("malformed manifest: %w", err))
	}
	if mf.Entries == nil {
		mf.Entries = map[string]manifestEntry{}
	}
	if mf.Version == 0 {
		mf.Version = manifestVersion
	}
	return mf, nil
}

// saveManifest persists mf via atomicWriteFile, then fsyncs the
// containing directory so the rename itself is durable, not just the
// file's own contents.
func saveManifest(path string, mf manifestFile) error {
	if mf.Version == 0 {
		mf.Version = manifestVersion
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return shellerr.InternalErrorErr("cache.saveManifest", err)
	}
	if err := atomicWriteFile(path, data, 0o600); err != nil {
		return shellerr.InternalErrorErr("cache.saveManifest", err)
	}
	return fsyncDir(path)
}
