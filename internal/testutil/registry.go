package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

// TarGz builds a gzip-compressed tar archive from name to content pairs.
// Entries are written in name order.
func TarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write tar entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// ArchivePath is the mirror path of a prebuilt binding archive.
func ArchivePath(pkg, version, name string) string {
	return fmt.Sprintf("/-/binary/%s/v%s/%s.tar.gz", pkg, version, name)
}

// Registry is a fake binding mirror. Unknown paths answer 404.
type Registry struct {
	*httptest.Server

	hits atomic.Int32

	mu    sync.Mutex
	files map[string][]byte
}

// NewRegistry starts a mirror that is closed when the test ends.
func NewRegistry(t *testing.T) *Registry {
	t.Helper()
	r := &Registry{files: make(map[string][]byte)}
	r.Server = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.Close)
	return r
}

// Serve publishes body at path.
func (r *Registry) Serve(path string, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = body
}

// Hits reports how many requests the mirror has answered.
func (r *Registry) Hits() int {
	return int(r.hits.Load())
}

func (r *Registry) handle(w http.ResponseWriter, req *http.Request) {
	r.hits.Add(1)

	r.mu.Lock()
	body, ok := r.files[req.URL.Path]
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}
