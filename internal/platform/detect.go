package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Fingerprinter derives the platform Key of the running host.
type Fingerprinter struct {
	goos     string
	goarch   string
	reporter Reporter
	lookPath func(file string) (string, error)
	readFile func(name string) ([]byte, error)
}

// Option customizes a Fingerprinter.
type Option func(*Fingerprinter)

// WithRuntime overrides the GOOS/GOARCH pair reported by the Go runtime.
func WithRuntime(goos, goarch string) Option {
	return func(f *Fingerprinter) {
		f.goos = goos
		f.goarch = goarch
	}
}

// WithReporter replaces the runtime diagnostics reporter. Passing nil makes
// the report unavailable so detection goes straight to the ldd probe.
func WithReporter(r Reporter) Option {
	return func(f *Fingerprinter) {
		f.reporter = r
	}
}

// WithLddProbe replaces the functions used to locate and read ldd.
func WithLddProbe(lookPath func(string) (string, error), readFile func(string) ([]byte, error)) Option {
	return func(f *Fingerprinter) {
		f.lookPath = lookPath
		f.readFile = readFile
	}
}

// NewFingerprinter creates a Fingerprinter for the running host.
func NewFingerprinter(opts ...Option) *Fingerprinter {
	f := &Fingerprinter{
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		reporter: NewHostReporter(),
		lookPath: exec.LookPath,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fingerprint returns the platform Key. It cannot fail: when the C library
// cannot be determined on Linux it assumes musl.
func (f *Fingerprinter) Fingerprint(ctx context.Context) Key {
	key := Key{
		OS:   normalizeOS(f.goos),
		Arch: normalizeArch(f.goarch),
	}

	if key.OS != OSLinux {
		return key
	}

	if f.isMusl(ctx) {
		key.Libc = LibcMusl
	} else {
		key.Libc = LibcGlibc
	}
	return key
}

// isMusl checks the diagnostics report first and falls back to scanning the
// dynamic linker wrapper for a musl marker.
func (f *Fingerprinter) isMusl(ctx context.Context) bool {
	if f.reporter != nil {
		if report, err := f.reporter.Report(ctx); err == nil && report != nil {
			return report.GlibcVersionRuntime == ""
		}
	}

	if f.lookPath == nil || f.readFile == nil {
		return true
	}

	lddPath, err := f.lookPath("ldd")
	if err != nil {
		return true
	}
	content, err := f.readFile(lddPath)
	if err != nil {
		return true
	}
	return bytes.Contains(content, []byte("musl"))
}

// HostReporter builds a Report from gopsutil distribution data and the
// glibc version exposed by getconf.
type HostReporter struct {
	getconf func(ctx context.Context) ([]byte, error)
}

// NewHostReporter creates a reporter backed by the real host.
func NewHostReporter() *HostReporter {
	return &HostReporter{getconf: runGetconf}
}

// Report implements Reporter.
//
// Distribution detection failures are tolerated (fields left empty). The
// report is unavailable only when getconf itself cannot be found, which is
// the signal for the caller to fall back to probing ldd.
func (r *HostReporter) Report(ctx context.Context) (*Report, error) {
	report := &Report{}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
	} else if platform = normalizePlatform(platform); platform != "" {
		report.Platform = platform
		report.Family = mapFamily(family)
		report.Version = normalizePlatform(version)
	}

	out, err := r.getconf(ctx)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("glibc version unavailable: %w", err)
		}
		// getconf exists but does not know GNU_LIBC_VERSION (musl).
		return report, nil
	}
	report.GlibcVersionRuntime = parseGlibcVersion(string(out))
	return report, nil
}

func runGetconf(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "getconf", "GNU_LIBC_VERSION").Output()
}

// parseGlibcVersion extracts "2.35" from "glibc 2.35".
func parseGlibcVersion(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 2 && strings.EqualFold(fields[0], "glibc") {
		return fields[1]
	}
	return ""
}
