package artifactcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shellsage/shellsage/internal/shellerr"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestEnsure_DownloadsAndVerifies(t *testing.T) {
	payload := []byte("fake model bytes, quantized beyond recognition")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	path, err := c.Ensure(context.Background(), "model-a", srv.URL, sha256Hex(payload), int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("downloaded content mismatch")
	}

	count, total := c.Stats()
	if count != 1 || total != int64(len(payload)) {
		t.Fatalf("Stats=%d,%d want 1,%d", count, total, len(payload))
	}
}

func TestEnsure_IdempotentNoSecondDownload(t *testing.T) {
	payload := []byte("model bytes")
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := c.Ensure(context.Background(), "model-b", srv.URL, sha256Hex(payload), int64(len(payload)), nil); err != nil {
		t.Fatalf("Ensure 1: %v", err)
	}
	if _, err := c.Ensure(context.Background(), "model-b", srv.URL, sha256Hex(payload), int64(len(payload)), nil); err != nil {
		t.Fatalf("Ensure 2: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one network download, got %d", hits)
	}
}

func TestEnsure_ConcurrentCallsCollapseToOneDownload(t *testing.T) {
	payload := []byte("concurrent model bytes")
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Ensure(context.Background(), "model-c", srv.URL, sha256Hex(payload), int64(len(payload)), nil)
			if err != nil {
				t.Errorf("Ensure: %v", err)
				return
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	mu.Lock()
	got := hits
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected one download across concurrent Ensure calls, got %d", got)
	}
	for _, p := range paths {
		if p != paths[0] {
			t.Fatalf("all callers should observe the same path")
		}
	}
}

func TestEnsure_ChecksumMismatchRemovesPartial(t *testing.T) {
	payload := []byte("corrupt-ish bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = c.Ensure(context.Background(), "model-d", srv.URL, "0000000000000000000000000000000000000000000000000000000000000000", int64(len(payload)), nil)
	if err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
	if !shellerr.Of(err, shellerr.ChecksumMismatch) {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %v", entries)
	}
}

func TestResolve_MissingManifestEntryIsIntegrityViolation(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = c.Resolve("does-not-exist")
	if !shellerr.Of(err, shellerr.IntegrityViolation) {
		t.Fatalf("expected IntegrityViolation, got %v", err)
	}
}

func TestResolve_TruncatedFileIsIntegrityViolation(t *testing.T) {
	payload := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path, err := c.Ensure(context.Background(), "model-e", srv.URL, sha256Hex(payload), int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if err := os.Truncate(path, 3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	_, err = c.Resolve("model-e")
	if !shellerr.Of(err, shellerr.IntegrityViolation) {
		t.Fatalf("expected IntegrityViolation after truncation, got %v", err)
	}

	// self-healing: Ensure redownloads and re-verifies.
	path2, err := c.Ensure(context.Background(), "model-e", srv.URL, sha256Hex(payload), int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Ensure after corruption: %v", err)
	}
	data, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("redownloaded content mismatch")
	}
}

func TestResolve_FlippedByteSameSizeIsIntegrityViolation(t *testing.T) {
	payload := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path, err := c.Ensure(context.Background(), "model-f", srv.URL, sha256Hex(payload), int64(len(payload)), nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	corrupted := make([]byte, len(payload))
	copy(corrupted, payload)
	corrupted[0] ^= 0xFF
	if err := os.WriteFile(path, corrupted, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = c.Resolve("model-f")
	if !shellerr.Of(err, shellerr.IntegrityViolation) {
		t.Fatalf("expected IntegrityViolation for digest mismatch, got %v", err)
	}
}

func TestEvict_RemovesLRUNonPinned(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i, name := range []string{"a", "b", "c"} {
		payload := []byte(fmt.Sprintf("payload-%s", name))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(payload)
		}))
		if _, err := c.Ensure(context.Background(), name, srv.URL, sha256Hex(payload), int64(len(payload)), nil); err != nil {
			t.Fatalf("Ensure %s: %v", name, err)
		}
		srv.Close()
		c.mu.Lock()
		e := c.manifest.Entries[name]
		e.LastAccessUnix = int64(i)
		c.manifest.Entries[name] = e
		c.mu.Unlock()
	}
	if err := c.Pin("c"); err != nil {
		t.Fatalf("Pin: %v", err)
	}

	if err := c.Evict(0); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	if _, err := c.Resolve("a"); err == nil {
		t.Fatalf("expected 'a' (oldest) to be evicted")
	}
	if _, err := c.Resolve("c"); err != nil {
		t.Fatalf("expected pinned 'c' to survive eviction: %v", err)
	}
}

func TestMakeRoom_PolicyDeniedWhenArtifactExceedsCap(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = c.makeRoom(2048, "whatever")
	if !shellerr.Of(err, shellerr.PolicyDenied) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}
