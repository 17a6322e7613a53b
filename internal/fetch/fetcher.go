// Package fetch downloads media items described by webhook attachment
// descriptors. Downloads stream to a scratch file and are moved into place
// atomically, so a crashed worker never leaves a half-written file in a
// job's raw directory.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 60 * time.Second
)

// Descriptor is the subset of an attachment descriptor the fetcher needs.
// Webhook payload variants use different url keys; the first non-empty one
// wins.
type Descriptor struct {
	DownloadURL string `json:"downloadUrl"`
	URL         string `json:"url"`
	DirectURL   string `json:"directUrl"`
	FileURL     string `json:"fileUrl"`
	FileName    string `json:"fileName"`
}

func (d Descriptor) sourceURL() string {
	for _, u := range []string{d.DownloadURL, d.URL, d.DirectURL, d.FileURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Fetcher retrieves media bytes over HTTP with a bounded retry budget.
type Fetcher struct {
	client   *http.Client
	tmpDir   string
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewFetcher creates a Fetcher streaming through tmpDir. attempts <= 0
// selects the default budget of 3.
func NewFetcher(tmpDir string, attempts int, logger *slog.Logger) *Fetcher {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Fetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		tmpDir:   tmpDir,
		logger:   logger,
		attempts: attempts,
		backoff:  time.Second,
	}
}

// Fetch downloads the media item described by the JSON descriptor into
// destDir and returns the final local path. After the retry budget is
// exhausted it returns a *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, descriptor, destDir string) (string, error) {
	var desc Descriptor
	if err := json.Unmarshal([]byte(descriptor), &desc); err != nil {
		return "", &domain.FetchError{URL: "", Err: fmt.Errorf("invalid descriptor: %w", err)}
	}
	srcURL := desc.sourceURL()
	if srcURL == "" {
		return "", &domain.FetchError{URL: "", Err: fmt.Errorf("descriptor has no download url")}
	}

	dest := uniquePath(destDir, fileNameFor(desc, srcURL))

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if err := f.download(ctx, srcURL, dest); err != nil {
			lastErr = err
			f.logger.Warn("Media download attempt failed",
				slog.String("url", srcURL),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return "", &domain.FetchError{URL: srcURL, Err: ctx.Err()}
			case <-time.After(f.backoff * time.Duration(attempt)):
			}
			continue
		}
		return dest, nil
	}
	return "", &domain.FetchError{URL: srcURL, Err: lastErr}
}

// download streams one HTTP response to a tmp file, then renames it into
// place.
func (f *Fetcher) download(ctx context.Context, srcURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmpPath := filepath.Join(f.tmpDir, uuid.NewString()+".part")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("stream body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close tmp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

// fileNameFor picks a name from the descriptor, falling back to the URL
// path, falling back to a generated one.
func fileNameFor(desc Descriptor, srcURL string) string {
	if desc.FileName != "" {
		return filepath.Base(desc.FileName)
	}
	if u, err := url.Parse(srcURL); err == nil {
		if base := filepath.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return uuid.NewString() + ".bin"
}

// uniquePath appends a numeric suffix until the name does not collide.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
