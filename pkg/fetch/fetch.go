// Package fetch retrieves the raw occupancy export over HTTP with retry and
// short-lived caching.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// ErrTransport marks a failure of the raw-source fetch: network error or
// non-success status after retries. Callers keep the previous good dataset
// when they see it.
var ErrTransport = errors.New("source fetch failed")

// maxBodySize bounds the export download; the log is a few thousand short
// rows at most.
const maxBodySize = 8 << 20

// Fetcher downloads the raw delimited export.
type Fetcher struct {
	logger     *slog.Logger
	httpClient *http.Client
	cache      *Cache
}

// New creates a Fetcher. cache may be nil to always hit the origin.
func New(logger *slog.Logger, httpClient *http.Client, cache *Cache) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{logger: logger, httpClient: httpClient, cache: cache}
}

// Fetch returns the export body as text. Transient failures are retried
// with exponential backoff and jitter; anything still failing is wrapped in
// ErrTransport.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(url); ok {
			f.logger.Debug("source cache hit", "url", url, "size", len(body))
			return string(body), nil
		}
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := f.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					f.logger.Debug("failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("HTTP %d", resp.StatusCode)
				// Client errors other than rate limiting will not improve
				// on retry.
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return fmt.Errorf("reading response body: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying source fetch", "attempt", n+1, "url", url, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTransport, url, err)
	}

	if f.cache != nil {
		f.cache.Set(url, body)
	}
	f.logger.Info("source fetched", "url", url, "size", len(body))
	return string(body), nil
}
