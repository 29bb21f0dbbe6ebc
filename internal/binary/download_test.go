package binary

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDownloaderDownload(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{
			name:       "successful_download",
			statusCode: http.StatusOK,
			body:       "test archive content",
			wantErr:    false,
		},
		{
			name:       "404_not_found",
			statusCode: http.StatusNotFound,
			body:       "not found",
			wantErr:    true,
		},
		{
			name:       "500_server_error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.body)); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			}))
			defer server.Close()

			tmpDir := t.TempDir()
			destPath := filepath.Join(tmpDir, "nested", "archive.tar.gz")

			n, err := NewDownloader().Download(context.Background(), server.URL, destPath, nil)

			if tt.wantErr {
				var de *DownloadError
				if !errors.As(err, &de) {
					t.Fatalf("expected DownloadError, got %v", err)
				}
				if de.StatusCode != tt.statusCode {
					t.Errorf("StatusCode = %d, want %d", de.StatusCode, tt.statusCode)
				}
				if de.URL != server.URL {
					t.Errorf("URL = %q, want %q", de.URL, server.URL)
				}
				if _, err := os.Stat(destPath); !os.IsNotExist(err) {
					t.Error("destination should not exist after failed download")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != int64(len(tt.body)) {
				t.Errorf("bytes = %d, want %d", n, len(tt.body))
			}

			content, err := os.ReadFile(destPath)
			if err != nil {
				t.Fatalf("failed to read downloaded file: %v", err)
			}
			if string(content) != tt.body {
				t.Errorf("content mismatch:\ngot:  %q\nwant: %q", string(content), tt.body)
			}
			if _, err := os.Stat(destPath + ".tmp"); !os.IsNotExist(err) {
				t.Error("temporary file left behind")
			}
		})
	}
}

func TestDownloaderProgress(t *testing.T) {
	body := strings.Repeat("x", 64*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	var updates []Progress
	observer := ProgressObserverFunc(func(p Progress) { updates = append(updates, p) })

	destPath := filepath.Join(t.TempDir(), "archive.tar.gz")
	if _, err := NewDownloader().Download(context.Background(), server.URL, destPath, observer); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	last := updates[len(updates)-1]
	if last.Downloaded != int64(len(body)) || last.Total != int64(len(body)) {
		t.Errorf("last progress = %+v", last)
	}
	if last.Percent != 100 {
		t.Errorf("last percent = %v, want 100", last.Percent)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Downloaded < updates[i-1].Downloaded {
			t.Fatalf("progress went backwards: %+v then %+v", updates[i-1], updates[i])
		}
	}
}

func TestDownloaderProgress_UnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush() // forces chunked encoding, no Content-Length
		_, _ = w.Write([]byte("chunked body"))
	}))
	defer server.Close()

	var last Progress
	observer := ProgressObserverFunc(func(p Progress) { last = p })

	destPath := filepath.Join(t.TempDir(), "archive.tar.gz")
	if _, err := NewDownloader().Download(context.Background(), server.URL, destPath, observer); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if last.Total != -1 || last.Percent != 0 {
		t.Errorf("unknown length progress = %+v", last)
	}
}

func TestDownloaderConnectionReset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("a", 512)))
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		conn.Close()
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "archive.tar.gz")
	_, err := NewDownloader().Download(context.Background(), server.URL, destPath, nil)

	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if !errors.Is(err, ErrDownload) {
		t.Error("expected errors.Is(err, ErrDownload)")
	}
	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Error("destination must not exist after a reset transfer")
	}
	if _, err := os.Stat(destPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestDownloaderRetryLogic(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			// Fail first two attempts
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	downloader := NewDownloader(WithRetries(3, time.Millisecond))

	destPath := filepath.Join(t.TempDir(), "test-file")
	if _, err := downloader.Download(context.Background(), server.URL, destPath, nil); err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}

	content, _ := os.ReadFile(destPath)
	if string(content) != "success" {
		t.Errorf("unexpected content: %s", string(content))
	}
}

func TestDownloaderRetry_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	downloader := NewDownloader(WithRetries(3, time.Millisecond))
	_, err := downloader.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), nil)

	var de *DownloadError
	if !errors.As(err, &de) || de.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 DownloadError, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestDownloaderRetry_Exhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	downloader := NewDownloader(WithRetries(2, time.Millisecond))
	_, err := downloader.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), nil)

	var de *DownloadError
	if !errors.As(err, &de) || de.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 DownloadError, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDownloaderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	downloader := NewDownloader(WithTimeout(20 * time.Millisecond))

	destPath := filepath.Join(t.TempDir(), "test-file")
	_, err := downloader.Download(context.Background(), server.URL, destPath, nil)

	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got: %v", err)
	}
	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Error("destination should not exist after timeout")
	}
}

func TestDownloaderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDownloader().Download(ctx, server.URL, filepath.Join(t.TempDir(), "f"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got: %v", err)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		setup    func() string
		expected bool
	}{
		{
			name: "existing_file",
			setup: func() string {
				return writeFile(t, filepath.Join(tmpDir, "existing.node"), "content")
			},
			expected: true,
		},
		{
			name: "empty_file",
			setup: func() string {
				return writeFile(t, filepath.Join(tmpDir, "empty.node"), "")
			},
			expected: false,
		},
		{
			name: "directory",
			setup: func() string {
				dir := filepath.Join(tmpDir, "dir.node")
				if err := os.MkdirAll(dir, 0755); err != nil {
					t.Fatalf("failed to create dir: %v", err)
				}
				return dir
			},
			expected: false,
		},
		{
			name: "missing",
			setup: func() string {
				return filepath.Join(tmpDir, "missing.node")
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup()
			if result := fileExists(path); result != tt.expected {
				t.Errorf("fileExists(%s) = %v, want %v", path, result, tt.expected)
			}
			if result := IsCached(&Descriptor{FinalPath: path}); result != tt.expected {
				t.Errorf("IsCached(%s) = %v, want %v", path, result, tt.expected)
			}
		})
	}
}

func TestDownloaderRedirectHandling(t *testing.T) {
	var redirectCount atomic.Int32
	finalContent := "final content after redirects"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n := redirectCount.Load(); n < 3 {
			redirectCount.Add(1)
			http.Redirect(w, r, fmt.Sprintf("/redirect-%d", n+1), http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(finalContent)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "redirected-file")
	if _, err := NewDownloader().Download(context.Background(), server.URL, destPath, nil); err != nil {
		t.Fatalf("download with redirects failed: %v", err)
	}

	content, _ := os.ReadFile(destPath)
	if string(content) != finalContent {
		t.Errorf("unexpected content after redirects: %s", string(content))
	}

	if got := redirectCount.Load(); got != 3 {
		t.Errorf("expected 3 redirects, got %d", got)
	}
}
