// Package artifactcache implements the content-addressed local model
// artifact store: resumable downloads, checksum verification, LRU
// eviction and an on-disk manifest, generalized from "one release
// binary, flock-guarded atomic load/save of a JSON manifest" to "any
// number of content-addressed model artifacts".
package artifactcache

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

const defaultMaxTotalBytes = 10 << 30 // 10 GiB

// Cache is the content-addressed artifact store. It owns its directory
// tree and manifest file exclusively; the only shared mutable state is
// the in-memory manifest, guarded by mu, and the on-disk manifest file,
// guarded additionally by an flock for cross-process safety.
type Cache struct {
	root          string
	modelsDir     string
	manifestPath  string
	maxTotalBytes int64

	mu       sync.RWMutex
	lock     *flock.Flock
	manifest manifestFile
	client   *http.Client

	inflight singleflight.Group
}

// Open resolves root (falling back to the OS cache dir + "shellsage"
// when empty), loads the manifest (tolerating a missing file), and
// returns a ready Cache. maxTotalBytes <= 0 uses a 10 GiB default.
func Open(root string, maxTotalBytes int64) (*Cache, error) {
	if root == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, shellerr.ConfigInvalidErr("cache.Open", fmt.Errorf("resolve cache dir: %w", err))
		}
		root = filepath.Join(base, "shellsage")
	}
	modelsDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelsDir, 0o700); err != nil {
		return nil, shellerr.InternalErrorErr("cache.Open", fmt.Errorf("create cache dir: %w", err))
	}

	manifestPath := filepath.Join(root, "manifest.json")
	mf, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	if maxTotalBytes <= 0 {
		maxTotalBytes = defaultMaxTotalBytes
	}

	return &Cache{
		root:          root,
		modelsDir:     modelsDir,
		manifestPath:  manifestPath,
		maxTotalBytes: maxTotalBytes,
		lock:          flock.New(manifestPath + ".lock"),
		manifest:      mf,
		client:        &http.Client{},
	}, nil
}

func (c *Cache) artifactPath(filename string) string {
	return filepath.Join(c.modelsDir, filename)
}

// Resolve returns the absolute path to a verified artifact for id. It
// checks the file's existence, size, and SHA-256 digest against the
// manifest entry — a same-size, flipped-byte corruption on disk must
// not pass silently into inference, so every call re-hashes the file
// rather than trusting the stat alone.
func (c *Cache) Resolve(id string) (string, error) {
	c.mu.RLock()
	entry, ok := c.manifest.Entries[id]
	c.mu.RUnlock()
	if !ok {
		return "", shellerr.IntegrityViolationErr("cache.Resolve", fmt.Errorf("no cached artifact for %q", id))
	}

	path := c.artifactPath(entry.Filename)
	info, err := os.Stat(path)
	if err != nil {
		return "", shellerr.WithPath(shellerr.IntegrityViolationErr("cache.Resolve", fmt.Errorf("artifact file missing: %w", err)), path)
	}
	if info.Size() != entry.SizeBytes {
		return "", shellerr.WithPath(shellerr.IntegrityViolationErr("cache.Resolve", fmt.Errorf("size mismatch: manifest=%d disk=%d", entry.SizeBytes, info.Size())), path)
	}

	digest, err := hashFile(path)
	if err != nil {
		return "", shellerr.WithPath(shellerr.IntegrityViolationErr("cache.Resolve", fmt.Errorf("rehash artifact: %w", err)), path)
	}
	if digest != entry.SHA256Hex {
		return "", shellerr.WithPath(shellerr.IntegrityViolationErr("cache.Resolve", fmt.Errorf("digest mismatch: manifest=%s disk=%s", entry.SHA256Hex, digest)), path)
	}

	c.touch(id)
	return path, nil
}

// Ensure idempotently guarantees a verified artifact for id is present,
// downloading (and retrying/resuming) it if necessary. Concurrent calls
// for the same id collapse onto a single in-flight download.
func (c *Cache) Ensure(ctx context.Context, id, sourceURL, expectedSHA256 string, expectedSize int64, sink ProgressFunc) (string, error) {
	v, err, _ := c.inflight.Do(id, func() (interface{}, error) {
		return c.ensureOnce(ctx, id, sourceURL, expectedSHA256, expectedSize, sink)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) ensureOnce(ctx context.Context, id, sourceURL, expectedSHA256 string, expectedSize int64, sink ProgressFunc) (string, error) {
	if path, err := c.Resolve(id); err == nil {
		return path, nil
	}

	if expectedSize > 0 {
		if err := c.makeRoom(expectedSize, id); err != nil {
			return "", err
		}
	}

	filename := id
	destPath := c.artifactPath(filename)
	tempPath := destPath + ".download"

	result, err := resumeDownload(ctx, c.client, sourceURL, tempPath, sink)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}

	if expectedSHA256 != "" && result.sha256Hex != expectedSHA256 {
		_ = os.Remove(tempPath)
		// one-shot retry from byte zero, per the recoverable-locally policy
		result, err = resumeDownload(ctx, c.client, sourceURL, tempPath, sink)
		if err != nil {
			_ = os.Remove(tempPath)
			return "", err
		}
		if expectedSHA256 != "" && result.sha256Hex != expectedSHA256 {
			_ = os.Remove(tempPath)
			return "", shellerr.ChecksumMismatchErr("cache.Ensure", fmt.Errorf("expected %s got %s", expectedSHA256, result.sha256Hex))
		}
	}
	if expectedSize > 0 && result.size != expectedSize {
		_ = os.Remove(tempPath)
		return "", shellerr.IntegrityViolationErr("cache.Ensure", fmt.Errorf("expected %d bytes got %d", expectedSize, result.size))
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		_ = os.Remove(tempPath)
		return "", shellerr.InternalErrorErr("cache.Ensure", err)
	}
	if err := fsyncDir(destPath); err != nil {
		return "", shellerr.InternalErrorErr("cache.Ensure", err)
	}

	c.mu.Lock()
	c.manifest.Entries[id] = manifestEntry{
		Filename:       filename,
		SizeBytes:      result.size,
		SHA256:         result.sha256Hex,
		LastAccessUnix: time.Now().Unix(),
	}
	mfCopy := c.cloneManifestLocked()
	c.mu.Unlock()

	if err := c.persist(mfCopy); err != nil {
		return "", err
	}
	return destPath, nil
}

func (c *Cache) touch(id string) {
	c.mu.Lock()
	entry, ok := c.manifest.Entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	entry.LastAccessUnix = time.Now().Unix()
	c.manifest.Entries[id] = entry
	mfCopy := c.cloneManifestLocked()
	c.mu.Unlock()

	_ = c.persist(mfCopy)
}

func (c *Cache) cloneManifestLocked() manifestFile {
	out := manifestFile{Version: manifestVersion, Entries: make(map[string]manifestEntry, len(c.manifest.Entries))}
	for k, v := range c.manifest.Entries {
		out.Entries[k] = v
	}
	return out
}

func (c *Cache) persist(mf manifestFile) error {
	if err := c.lock.Lock(); err != nil {
		return shellerr.InternalErrorErr("cache.persist", fmt.Errorf("lock manifest: %w", err))
	}
	defer func() { _ = c.lock.Unlock() }()
	return saveManifest(c.manifestPath, mf)
}

// Stats returns the number of cached artifacts and their total size.
func (c *Cache) Stats() (count int, totalBytes int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.manifest.Entries {
		count++
		totalBytes += e.SizeBytes
	}
	return count, totalBytes
}

// Manifest returns a snapshot of the current manifest as the
// shelldomain value type, for callers that only want to inspect it.
func (c *Cache) Manifest() shelldomain.Manifest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := shelldomain.Manifest{Version: c.manifest.Version, Entries: make(map[string]shelldomain.CachedArtifact, len(c.manifest.Entries))}
	for id, e := range c.manifest.Entries {
		out.Entries[id] = shelldomain.CachedArtifact{
			ID:             id,
			AbsolutePath:   c.artifactPath(e.Filename),
			SizeBytes:      e.SizeBytes,
			SHA256Hex:      e.SHA256,
			LastAccessUnix: e.LastAccessUnix,
			Pinned:         e.Pinned,
		}
	}
	return out
}

// Pin marks id as exempt from eviction. Unpin reverses that.
func (c *Cache) Pin(id string) error  { return c.setPinned(id, true) }
func (c *Cache) Unpin(id string) error { return c.setPinned(id, false) }

func (c *Cache) setPinned(id string, pinned bool) error {
	c.mu.Lock()
	entry, ok := c.manifest.Entries[id]
	if !ok {
		c.mu.Unlock()
		return shellerr.IntegrityViolationErr("cache.setPinned", fmt.Errorf("no cached artifact for %q", id))
	}
	entry.Pinned = pinned
	c.manifest.Entries[id] = entry
	mfCopy := c.cloneManifestLocked()
	c.mu.Unlock()

	return c.persist(mfCopy)
}

// Evict removes least-recently-accessed, non-pinned artifacts until the
// total cached size is at most targetBytes.
func (c *Cache) Evict(targetBytes int64) error {
	c.mu.Lock()
	type candidate struct {
		id    string
		entry manifestEntry
	}
	var candidates []candidate
	var total int64
	for id, e := range c.manifest.Entries {
		total += e.SizeBytes
		if !e.Pinned {
			candidates = append(candidates, candidate{id, e})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].entry.LastAccessUnix < candidates[j].entry.LastAccessUnix
	})

	for _, cand := range candidates {
		if total <= targetBytes {
			break
		}
		path := c.artifactPath(cand.entry.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.mu.Unlock()
			return shellerr.InternalErrorErr("cache.Evict", err)
		}
		total -= cand.entry.SizeBytes
		delete(c.manifest.Entries, cand.id)
	}
	mfCopy := c.cloneManifestLocked()
	c.mu.Unlock()

	return c.persist(mfCopy)
}

// makeRoom evicts LRU artifacts (other than excludeID) until adding
// addBytes would not exceed the configured cap. If the artifact alone
// cannot fit even with every unpinned entry evicted, PolicyDenied.
func (c *Cache) makeRoom(addBytes int64, excludeID string) error {
	c.mu.RLock()
	var pinnedTotal, currentTotal int64
	for id, e := range c.manifest.Entries {
		currentTotal += e.SizeBytes
		if e.Pinned && id != excludeID {
			pinnedTotal += e.SizeBytes
		}
	}
	maxBytes := c.maxTotalBytes
	c.mu.RUnlock()

	if addBytes > maxBytes-pinnedTotal {
		return shellerr.PolicyDeniedErr("cache.makeRoom", fmt.Errorf("artifact of %d bytes exceeds cap minus pinned bytes (%d)", addBytes, maxBytes-pinnedTotal))
	}
	if currentTotal+addBytes <= maxBytes {
		return nil
	}
	return c.Evict(maxBytes - addBytes)
}
