package embeddedbackend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shellsage/shellsage/internal/artifactcache"
	"github.com/shellsage/shellsage/internal/backend"
	"github.com/shellsage/shellsage/internal/promptio"
	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

// ModelArtifact describes one of the two files a quantized model needs:
// the weights and the tokenizer. Both are cached under their own id;
// the cache's flat, content-addressed layout (one file per id, no
// per-model subdirectories) means "same directory" for loading purposes
// is simply the cache's single models/ directory.
type ModelArtifact struct {
	ID             string
	SourceURL      string
	ExpectedSHA256 string
	ExpectedSize   int64
}

// Backend is the embedded (local, in-process) inference backend. It
// holds the single loaded model per process behind gateMu, lazily
// loading it from the artifact cache on first Generate, matching the
// teacher's Stack (one long-lived resource, a mutex-guarded mutable
// handle, an idempotent Close/Shutdown).
type Backend struct {
	cache           *artifactcache.Cache
	model           ModelArtifact
	tokenizer       ModelArtifact
	maxOutputTokens int

	gateMu sync.Mutex
	engine Engine
	loaded bool
}

// New constructs an embedded backend bound to cache for the given model
// and tokenizer artifacts. Neither is fetched or loaded until the first
// Generate call.
func New(cache *artifactcache.Cache, model, tokenizer ModelArtifact) *Backend {
	return &Backend{
		cache:           cache,
		model:           model,
		tokenizer:       tokenizer,
		maxOutputTokens: DefaultMaxOutputTokens,
	}
}

var _ backend.Backend = (*Backend)(nil)

// IsAvailable never performs I/O: it reports true once a suitable Engine
// can in principle be constructed, which is unconditionally true for the
// CPU variant.
func (b *Backend) IsAvailable(ctx context.Context) bool { return true }

func (b *Backend) Info() backend.Info {
	b.gateMu.Lock()
	defer b.gateMu.Unlock()
	info := backend.Info{Name: "embedded", ModelID: b.model.ID, Loaded: b.loaded}
	if b.engine != nil {
		info.Variant = b.engine.Device()
	}
	return info
}

// Shutdown releases the loaded model. Idempotent.
func (b *Backend) Shutdown() error {
	b.gateMu.Lock()
	defer b.gateMu.Unlock()
	if b.engine == nil {
		return nil
	}
	err := b.engine.Close()
	b.engine = nil
	b.loaded = false
	if err != nil {
		return shellerr.InternalErrorErr("embeddedbackend.Shutdown", err)
	}
	return nil
}

func (b *Backend) Generate(ctx context.Context, req shelldomain.Request) (shelldomain.GeneratedCommand, error) {
	start := time.Now()
	b.gateMu.Lock()
	defer b.gateMu.Unlock()

	if err := b.ensureLoadedLocked(ctx); err != nil {
		return shelldomain.GeneratedCommand{}, err
	}

	system, user := promptio.RenderPrompt(req)
	raw, err := b.engine.Decode(ctx, system, user, b.maxOutputTokens, "")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return shelldomain.GeneratedCommand{}, shellerr.TimeoutErr("embeddedbackend.Generate", ctx.Err())
		}
		if ctx.Err() != nil {
			return shelldomain.GeneratedCommand{}, shellerr.CancelledErr("embeddedbackend.Generate", ctx.Err())
		}
		return shelldomain.GeneratedCommand{}, wrapInferenceError("embeddedbackend.Generate", err)
	}
	if raw == "" {
		return shelldomain.GeneratedCommand{}, emptyDecodeError("embeddedbackend.Generate")
	}

	cmdText, err := promptio.ParseCommand(raw)
	if err != nil {
		return shelldomain.GeneratedCommand{}, err
	}
	cmd := shelldomain.GeneratedCommand{
		CommandText:  cmdText,
		BackendLabel: "embedded",
		RawResponse:  raw,
		Duration:     time.Since(start),
	}
	if err := cmd.Validate(); err != nil {
		return shelldomain.GeneratedCommand{}, shellerr.ResponseUnparseableErr("embeddedbackend.Generate", err)
	}
	return cmd, nil
}

// ensureLoadedLocked lazily loads the model. Caller must hold gateMu.
func (b *Backend) ensureLoadedLocked(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	modelPath, err := b.cache.Ensure(ctx, b.model.ID, b.model.SourceURL, b.model.ExpectedSHA256, b.model.ExpectedSize, nil)
	if err != nil {
		return err
	}
	tokenizerPath, err := b.cache.Ensure(ctx, b.tokenizer.ID, b.tokenizer.SourceURL, b.tokenizer.ExpectedSHA256, b.tokenizer.ExpectedSize, nil)
	if err != nil {
		return err
	}
	eng := newCapableEngine()
	if err := eng.Load(modelPath, tokenizerPath); err != nil {
		return wrapLoadError("embeddedbackend.ensureLoadedLocked", fmt.Errorf("load %s / %s: %w", modelPath, tokenizerPath, err))
	}
	b.engine = eng
	b.loaded = true
	return nil
}
