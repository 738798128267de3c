package embeddedbackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shellsage/shellsage/internal/artifactcache"
	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

func testRequest(t *testing.T, text string) shelldomain.Request {
	t.Helper()
	ctx := shelldomain.NewRequestContext("/tmp", shelldomain.Linux, shelldomain.Bash, nil, "host", "user")
	req, err := shelldomain.NewRequest(text, shelldomain.Bash, shelldomain.Moderate, ctx)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestBackend_GenerateLazilyLoadsAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake artifact bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache, err := artifactcache.Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b := New(cache,
		ModelArtifact{ID: "model-x", SourceURL: srv.URL},
		ModelArtifact{ID: "model-x-tokenizer", SourceURL: srv.URL},
	)

	info := b.Info()
	if info.Loaded {
		t.Fatalf("expected not loaded before first Generate")
	}

	cmd, err := b.Generate(context.Background(), testRequest(t, "list files in current directory"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if cmd.CommandText != "ls -la" {
		t.Fatalf("cmd=%q want %q", cmd.CommandText, "ls -la")
	}
	if cmd.BackendLabel != "embedded" {
		t.Fatalf("backend label=%q", cmd.BackendLabel)
	}

	info = b.Info()
	if !info.Loaded {
		t.Fatalf("expected loaded after Generate")
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown idempotent: %v", err)
	}
	if b.Info().Loaded {
		t.Fatalf("expected not loaded after Shutdown")
	}
}

func TestBackend_IsAvailableNeverBlocks(t *testing.T) {
	dir := t.TempDir()
	cache, err := artifactcache.Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b := New(cache, ModelArtifact{ID: "m"}, ModelArtifact{ID: "t"})
	if !b.IsAvailable(context.Background()) {
		t.Fatalf("expected embedded backend to always report available")
	}
}

func TestBackend_GenerateDistinguishesTimeoutFromCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake artifact bytes"))
	}))
	defer srv.Close()

	// newLoadedBackend primes the model/tokenizer via a successful
	// Generate call first, so the decode-path context checks below run
	// against an already-loaded engine rather than racing the cache's
	// own context-sensitive download.
	newLoadedBackend := func(t *testing.T) *Backend {
		t.Helper()
		dir := t.TempDir()
		cache, err := artifactcache.Open(dir, 0)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		b := New(cache,
			ModelArtifact{ID: "model-y", SourceURL: srv.URL},
			ModelArtifact{ID: "model-y-tokenizer", SourceURL: srv.URL},
		)
		if _, err := b.Generate(context.Background(), testRequest(t, "list files")); err != nil {
			t.Fatalf("priming Generate: %v", err)
		}
		return b
	}

	t.Run("deadline exceeded", func(t *testing.T) {
		b := newLoadedBackend(t)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
		defer cancel()
		_, err := b.Generate(ctx, testRequest(t, "list files"))
		if !shellerr.Of(err, shellerr.Timeout) {
			t.Fatalf("expected Timeout, got %v", err)
		}
	})

	t.Run("explicitly cancelled", func(t *testing.T) {
		b := newLoadedBackend(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Generate(ctx, testRequest(t, "list files"))
		if !shellerr.Of(err, shellerr.Cancelled) {
			t.Fatalf("expected Cancelled, got %v", err)
		}
	})
}

func TestBackend_MissingModelSurfacesModelLoadOrNetworkFailure(t *testing.T) {
	dir := t.TempDir()
	cache, err := artifactcache.Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b := New(cache, ModelArtifact{ID: "m", SourceURL: "http://127.0.0.1:1"}, ModelArtifact{ID: "t", SourceURL: "http://127.0.0.1:1"})
	_, err = b.Generate(context.Background(), testRequest(t, "show disk usage"))
	if err == nil {
		t.Fatalf("expected error when source is unreachable")
	}
	if !shellerr.Of(err, shellerr.NetworkFailure) && !shellerr.Of(err, shellerr.ModelLoadFailure) {
		t.Fatalf("expected NetworkFailure or ModelLoadFailure, got %v", err)
	}
}
