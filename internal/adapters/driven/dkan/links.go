package dkan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure LinkChecker implements the interfaces.
var (
	_ driven.LinkProber = (*LinkChecker)(nil)
	_ driven.Downloader = (*LinkChecker)(nil)
)

var (
	_ driven.LinkProber = (*LinkChecker)(nil)
	_ driven.Downloader = (*LinkChecker)(nil)
)

// LinkChecker probes and downloads resource urls. It is not bound to the
// portal: resources often live on other hosts.
type LinkChecker struct {
	http *http.Client
}

// NewLinkChecker creates a link checker.
func NewLinkChecker(insecure bool, timeout time.Duration) *LinkChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LinkChecker{
		http: &http.Client{Timeout: timeout, Transport: newTransport(insecure)},
	}
}

// Probe sends a HEAD request. Codes below 400 are ok. Servers that do
// not allow HEAD are asked with GET.
func (l *LinkChecker) Probe(ctx context.Context, rawURL string) driven.LinkStatus {
	code, err := l.status(ctx, http.MethodHead, rawURL)
	if err == nil && code == http.StatusMethodNotAllowed {
		code, err = l.status(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		logger.Debug("Probe %s: %v", rawURL, err)
		return driven.LinkStatus{Code: err.Error()}
	}
	return driven.LinkStatus{OK: code < 400, Code: strconv.Itoa(code)}
}

func (l *LinkChecker) status(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Download stores the body of rawURL at dest, creating its directory.
func (l *LinkChecker) Download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status, URL: rawURL}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	start := time.Now()
	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	logger.Info("Download in %.2fs: %s (%d bytes)", time.Since(start).Seconds(), filepath.Base(dest), n)
	return nil
}
