package unga

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// URL is a simple wrapper for url strings.
type URL string

// MaxBackoff caps the wait between retries.
const MaxBackoff = 60 * time.Second

// StatusError is returned by Download for any non-200 response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: got %v", e.StatusCode)
}

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func Download(ctx context.Context, url URL, client *http.Client) ([]byte, int, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(url), nil)
	if err != nil {
		return nil, 0, time.Time{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, time.Time{}, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, time.Time{}, err
	}

	t := time.Now()

	if cacheTimestamp := resp.Header.Get("X-Cache-Timestamp"); cacheTimestamp != "" {
		t, err = time.Parse(time.RFC3339, cacheTimestamp)
		if err != nil {
			return nil, resp.StatusCode, time.Time{}, fmt.Errorf("bad cache timestamp %q: %w", cacheTimestamp, err)
		}
	}

	return body, resp.StatusCode, t, nil
}

// DownloadWithRetry retries transient failures. A 429 waits for Retry-After
// when the server sends one; everything else backs off exponentially from
// baseDelay up to MaxBackoff. Client errors other than 429 fail immediately.
func DownloadWithRetry(ctx context.Context, url string, client *http.Client, maxRetries int, baseDelay time.Duration) (body []byte, code int, ts time.Time, err error) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, code, ts, err = Download(ctx, URL(url), client)
		if err == nil {
			return body, code, ts, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return body, code, ts, err
		}

		if attempt >= maxRetries {
			break
		}

		delay := Backoff(baseDelay, attempt)
		if statusErr != nil && statusErr.RetryAfter > 0 {
			delay = statusErr.RetryAfter
		}

		slog.Info("attempt failed", "url", url, "attempt_nr", attempt, "max_tries", maxRetries, "error", err, "delay", delay)

		if err := Sleep(ctx, delay); err != nil {
			return nil, code, ts, err
		}
	}

	return body, code, ts, fmt.Errorf("download failed after %d attempts: %w", maxRetries, err)
}

// Backoff returns base*2^(attempt-1) capped at MaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return min(d, MaxBackoff)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func Sha256sum(x []byte) string {
	h := sha256.New()
	h.Write(x)

	return fmt.Sprintf("%x", h.Sum(nil))
}

// WriteJSON writes v with two-space indentation, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
