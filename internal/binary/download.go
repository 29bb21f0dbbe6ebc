package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultTimeout bounds a single download when none is configured.
	DefaultTimeout = 60 * time.Second
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "skiacanvas/1.0"
	// DefaultRetryBackoff is the first delay between download attempts.
	DefaultRetryBackoff = time.Second
	// progressLogStep is the percentage between two progress log lines.
	progressLogStep = 10
)

// Downloader streams archives over HTTP.
type Downloader struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	retries   uint64
	backoff   time.Duration
	logger    Logger
}

// DownloaderOption customizes a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = c }
}

// WithTimeout bounds each download. Zero disables the bound.
func WithTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) { d.timeout = timeout }
}

// WithRetries enables retrying failed attempts with exponential backoff
// starting at base.
func WithRetries(retries uint64, base time.Duration) DownloaderOption {
	return func(d *Downloader) {
		d.retries = retries
		d.backoff = base
	}
}

// WithDownloadLogger sets the logger used for progress lines.
func WithDownloadLogger(l Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = loggerOrNop(l) }
}

// NewDownloader creates a new downloader. It does not retry unless
// WithRetries is given.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		backoff:   DefaultRetryBackoff,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into destPath and returns the number of bytes
// written. The body is streamed into destPath.tmp and renamed on success,
// so destPath never holds a partial file. Every failure is a *DownloadError.
func (d *Downloader) Download(ctx context.Context, url, destPath string, observer ProgressObserver) (int64, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var written int64
	attempt := func(ctx context.Context) error {
		n, err := d.downloadOnce(ctx, url, destPath, observer)
		if err != nil {
			var de *DownloadError
			if errors.As(err, &de) && de.StatusCode >= 400 && de.StatusCode < 500 {
				return err
			}
			return retry.RetryableError(err)
		}
		written = n
		return nil
	}

	if d.retries == 0 {
		if err := attempt(ctx); err != nil {
			return 0, unwrapRetryable(err)
		}
		return written, nil
	}

	b := retry.WithMaxRetries(d.retries, retry.NewExponential(d.backoff))
	if err := retry.Do(ctx, b, attempt); err != nil {
		var de *DownloadError
		if errors.As(err, &de) {
			return 0, de
		}
		return 0, &DownloadError{URL: url, Cause: err}
	}
	return written, nil
}

// unwrapRetryable strips the retry marker added by attempt.
func unwrapRetryable(err error) error {
	var de *DownloadError
	if errors.As(err, &de) {
		return de
	}
	return err
}

// downloadOnce performs a single download attempt
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string, observer ProgressObserver) (int64, error) {
	fail := func(status int, cause error) (int64, error) {
		return 0, &DownloadError{URL: url, StatusCode: status, Cause: cause}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fail(0, fmt.Errorf("create dest dir: %w", err))
	}

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fail(0, fmt.Errorf("create temp file: %w", err))
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	counter := &progressWriter{
		total:    resp.ContentLength,
		observer: observer,
		logger:   d.logger,
		url:      url,
	}
	n, err := io.Copy(io.MultiWriter(tmpFile, counter), resp.Body)
	if err != nil {
		return fail(0, fmt.Errorf("copy response body: %w", err))
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return fail(0, fmt.Errorf("short body: got %d of %d bytes: %w", n, resp.ContentLength, io.ErrUnexpectedEOF))
	}

	if err := tmpFile.Close(); err != nil {
		return fail(0, fmt.Errorf("close temp file: %w", err))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fail(0, fmt.Errorf("rename temp file: %w", err))
	}

	cleanupNeeded = false
	return n, nil
}

// progressWriter counts bytes and reports progress.
type progressWriter struct {
	written  int64
	total    int64
	observer ProgressObserver
	logger   Logger
	url      string
	logged   int
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))

	progress := Progress{Downloaded: w.written, Total: w.total}
	if w.total > 0 {
		progress.Percent = float64(w.written) * 100 / float64(w.total)
	} else {
		progress.Total = -1
	}

	if w.observer != nil {
		w.observer.OnProgress(progress)
	}

	if step := int(progress.Percent) / progressLogStep * progressLogStep; step > w.logged {
		w.logged = step
		w.logger.Info("download progress", "url", w.url, "percent", step, "bytes", w.written)
	}
	return len(p), nil
}
