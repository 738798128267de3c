// Package remotebackend implements the two HTTP-speaking backend
// variants: an OpenAI-compatible chat completions client and a
// single-prompt local generate API client. Both share a base type for
// availability probing, retry/backoff and error classification: a
// context-scoped net/http client, status-code branching, and a
// short-timeout GET probe with a cached result.
package remotebackend

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/shellsage/shellsage/internal/backend"
	"github.com/shellsage/shellsage/internal/promptio"
	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

const (
	defaultGenerateTimeout = 30 * time.Second
	defaultProbeTimeout    = 2 * time.Second
	probeCacheTTL          = 30 * time.Second

	retryAttempts    = 3
	retryBaseBackoff = 1 * time.Second
)

// httpBackend holds the fields and behavior shared by both remote
// variants: client, endpoint identity, and a time-bounded availability
// cache so is_available never performs a probe more than once per TTL.
type httpBackend struct {
	client    *http.Client
	baseURL   string
	modelName string
	token     string
	timeout   time.Duration

	mu          sync.Mutex
	probedAt    time.Time
	probeResult bool
}

func newHTTPBackend(baseURL, modelName, token string, timeout time.Duration) httpBackend {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return httpBackend{
		client:    &http.Client{},
		baseURL:   baseURL,
		modelName: modelName,
		token:     token,
		timeout:   timeout,
	}
}

// cachedProbe reports a cached availability verdict, or false/false if
// the cache has expired and the caller must re-probe.
func (h *httpBackend) cachedProbe() (ok bool, fresh bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if time.Since(h.probedAt) > probeCacheTTL {
		return false, false
	}
	return h.probeResult, true
}

func (h *httpBackend) storeProbe(result bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probedAt = time.Now()
	h.probeResult = result
}

func (h *httpBackend) probe(ctx context.Context, path string) bool {
	if ok, fresh := h.cachedProbe(); fresh {
		return ok
	}
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		h.storeProbe(false)
		return false
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.storeProbe(false)
		return false
	}
	defer resp.Body.Close()
	ok := resp.StatusCode >= 200 && resp.StatusCode < 500
	h.storeProbe(ok)
	return ok
}

// isRetryableStatus reports whether a non-2xx status warrants a retry:
// 408, 429, and 5xx.
func isRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}

// withRetry runs attempt up to retryAttempts times with exponential
// backoff (1s before the second attempt, 2s before the third), stopping
// as soon as attempt reports a non-retryable outcome (retryable=false)
// or succeeds.
func withRetry(ctx context.Context, op string, attempt func(ctx context.Context) (shelldomain.GeneratedCommand, bool, error)) (shelldomain.GeneratedCommand, error) {
	var lastErr error
	backoff := retryBaseBackoff
	for i := 0; i < retryAttempts; i++ {
		cmd, retryable, err := attempt(ctx)
		if err == nil {
			return cmd, nil
		}
		lastErr = err
		if !retryable {
			return shelldomain.GeneratedCommand{}, err
		}
		if i == retryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return shelldomain.GeneratedCommand{}, shellerr.CancelledErr(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return shelldomain.GeneratedCommand{}, shellerr.WithAttempts(asError(op, lastErr), retryAttempts)
}

// asError preserves lastErr's existing *shellerr.Error kind (Timeout,
// NetworkFailure, ...) if it already is one, so retry exhaustion doesn't
// erase a more specific classification than BackendUnavailable.
func asError(op string, err error) *shellerr.Error {
	var se *shellerr.Error
	if errors.As(err, &se) {
		return se
	}
	return shellerr.BackendUnavailableErr(op, err)
}

// parseGeneratedText runs the shared command parser against raw
// backend text and stamps duration/raw response onto the result.
func parseGeneratedText(op, label, raw string, start time.Time) (shelldomain.GeneratedCommand, error) {
	cmdText, err := promptio.ParseCommand(raw)
	if err != nil {
		return shelldomain.GeneratedCommand{}, err
	}
	cmd := shelldomain.GeneratedCommand{
		CommandText:  cmdText,
		BackendLabel: label,
		RawResponse:  raw,
		Duration:     time.Since(start),
	}
	if err := cmd.Validate(); err != nil {
		return shelldomain.GeneratedCommand{}, shellerr.ResponseUnparseableErr(op, err)
	}
	return cmd, nil
}

var _ backend.Backend = (*OpenAICompatible)(nil)
var _ backend.Backend = (*LocalGenerateAPI)(nil)
