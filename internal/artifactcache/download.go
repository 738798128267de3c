package artifactcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shellsage/shellsage/internal/shellerr"
)

// ProgressFunc is the injected sink a caller may use to render download
// progress. total is 0 when the server or caller never supplied a size.
type ProgressFunc func(downloaded, total int64)

const (
	downloadAttempts   = 3
	downloadBaseBackoff = 1 * time.Second
	downloadTimeout    = 300 * time.Second
	downloadBufferSize = 64 * 1024
)

// downloadResult is what a (possibly resumed, possibly retried) download
// attempt produced.
type downloadResult struct {
	sha256Hex string
	size      int64
}

// resumeDownload streams url into tempPath, resuming from any bytes
// already present there, hashing incrementally as it streams, and
// retrying transient failures with exponential backoff. It reports
// NetworkFailure for anything that exhausts the retry budget or is
// non-retryable.
func resumeDownload(ctx context.Context, client *http.Client, url, tempPath string, sink ProgressFunc) (downloadResult, error) {
	if sink == nil {
		sink = func(int64, int64) {}
	}

	var lastErr error
	made := 0
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		result, retryable, err := attemptDownload(ctx, client, url, tempPath, sink)
		if err == nil {
			return result, nil
		}
		lastErr = err
		made = attempt
		if !retryable || attempt == downloadAttempts {
			break
		}
		if werr := waitBackoff(ctx, attempt); werr != nil {
			return downloadResult{}, werr
		}
	}
	return downloadResult{}, shellerr.WithAttempts(shellerr.NetworkFailureErr("cache.download", lastErr), made)
}

func waitBackoff(ctx context.Context, attempt int) error {
	d := downloadBaseBackoff * time.Duration(1<<(attempt-1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return shellerr.CancelledErr("cache.download", ctx.Err())
	case <-t.C:
		return nil
	}
}

// attemptDownload performs one HTTP round trip and, on success, streams
// the body to disk. The returned retryable flag tells the caller
// whether another attempt is worth making.
func attemptDownload(ctx context.Context, client *http.Client, url, tempPath string, sink ProgressFunc) (downloadResult, bool, error) {
	startAt, hasher, err := seedFromExisting(tempPath)
	if err != nil {
		return downloadResult{}, false, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return downloadResult{}, false, fmt.Errorf("build request: %w", err)
	}
	if startAt > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startAt))
	}

	resp, err := client.Do(req)
	if err != nil {
		return downloadResult{}, true, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if startAt > 0 {
			// Server ignored the Range header: discard the partial file
			// and restart from zero.
			if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return downloadResult{}, false, err
			}
			startAt = 0
			hasher = sha256.New()
		}
	case http.StatusPartialContent:
		// continuing as expected
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return downloadResult{}, true, fmt.Errorf("retryable status %s", resp.Status)
	default:
		if resp.StatusCode >= 500 {
			return downloadResult{}, true, fmt.Errorf("server error %s", resp.Status)
		}
		return downloadResult{}, false, fmt.Errorf("download failed: %s", resp.Status)
	}

	total := startAt + resp.ContentLength
	if resp.ContentLength < 0 {
		total = 0
	}

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return downloadResult{}, false, err
	}
	defer f.Close()

	downloaded := startAt
	buf := make([]byte, downloadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return downloadResult{}, false, shellerr.CancelledErr("cache.download", err)
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return downloadResult{}, false, werr
			}
			hasher.Write(buf[:n])
			downloaded += int64(n)
			sink(downloaded, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return downloadResult{}, true, rerr
		}
	}

	if err := f.Sync(); err != nil {
		return downloadResult{}, false, err
	}

	return downloadResult{sha256Hex: hex.EncodeToString(hasher.Sum(nil)), size: downloaded}, false, nil
}

// hashFile recomputes the SHA-256 digest of an already-downloaded
// artifact by streaming it through the hasher, never holding the
// whole file in memory regardless of its size.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// seedFromExisting reads any pre-existing partial temp file to
// determine the resume offset and seed the running hash with its
// already-downloaded bytes, so the final digest still covers the whole
// file without a second network pass.
func seedFromExisting(tempPath string) (int64, hash.Hash, error) {
	h := sha256.New()
	f, err := os.Open(tempPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, h, nil
	}
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	n, err := io.Copy(h, f)
	if err != nil {
		return 0, nil, err
	}
	return n, h, nil
}
