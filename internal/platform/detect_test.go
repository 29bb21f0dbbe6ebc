package platform

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
)

// mockReporter is a test implementation of Reporter.
type mockReporter struct {
	report *Report
	err    error
	calls  int
}

func (m *mockReporter) Report(ctx context.Context) (*Report, error) {
	m.calls++
	return m.report, m.err
}

func lddProbe(content string, lookErr, readErr error) Option {
	return WithLddProbe(
		func(string) (string, error) {
			if lookErr != nil {
				return "", lookErr
			}
			return "/usr/bin/ldd", nil
		},
		func(string) ([]byte, error) {
			if readErr != nil {
				return nil, readErr
			}
			return []byte(content), nil
		},
	)
}

func TestFingerprint_NonLinuxNeverConsultsLibc(t *testing.T) {
	tests := []struct {
		name   string
		goos   string
		goarch string
		want   Key
	}{
		{"windows x64", "windows", "amd64", Key{OS: OSWindows, Arch: ArchX64}},
		{"macos intel", "darwin", "amd64", Key{OS: OSMacOS, Arch: ArchX64}},
		{"apple silicon", "darwin", "arm64", Key{OS: OSMacOS, Arch: ArchARM64}},
		{"windows arm64", "windows", "arm64", Key{OS: OSWindows, Arch: ArchARM64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reporter := &mockReporter{err: errors.New("must not be called")}
			f := NewFingerprinter(WithRuntime(tt.goos, tt.goarch), WithReporter(reporter))

			got := f.Fingerprint(context.Background())
			if got != tt.want {
				t.Errorf("Fingerprint() = %+v, want %+v", got, tt.want)
			}
			if reporter.calls != 0 {
				t.Errorf("reporter called %d times on %s", reporter.calls, tt.goos)
			}
		})
	}
}

func TestFingerprint_LinuxLibc(t *testing.T) {
	tests := []struct {
		name     string
		reporter Reporter
		probe    Option
		want     string
	}{
		{
			name:     "report with glibc version",
			reporter: &mockReporter{report: &Report{GlibcVersionRuntime: "2.35"}},
			probe:    lddProbe("musl libc", nil, nil),
			want:     LibcGlibc,
		},
		{
			name:     "report without glibc version",
			reporter: &mockReporter{report: &Report{Platform: "alpine"}},
			probe:    lddProbe("GNU C Library", nil, nil),
			want:     LibcMusl,
		},
		{
			name:     "report unavailable, ldd mentions musl",
			reporter: &mockReporter{err: errors.New("no report")},
			probe:    lddProbe("#!/bin/sh\nexec /lib/ld-musl-x86_64.so.1 --list \"$@\"", nil, nil),
			want:     LibcMusl,
		},
		{
			name:     "report unavailable, glibc ldd",
			reporter: &mockReporter{err: errors.New("no report")},
			probe:    lddProbe("#!/bin/bash\n# ldd for the GNU C Library", nil, nil),
			want:     LibcGlibc,
		},
		{
			name:     "no reporter, ldd missing",
			reporter: nil,
			probe:    lddProbe("", exec.ErrNotFound, nil),
			want:     LibcMusl,
		},
		{
			name:     "no reporter, ldd unreadable",
			reporter: nil,
			probe:    lddProbe("", nil, errors.New("permission denied")),
			want:     LibcMusl,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFingerprinter(WithRuntime("linux", "amd64"), WithReporter(tt.reporter), tt.probe)

			got := f.Fingerprint(context.Background())
			if got.OS != OSLinux || got.Arch != ArchX64 {
				t.Fatalf("unexpected os/arch: %+v", got)
			}
			if got.Libc != tt.want {
				t.Errorf("Libc = %q, want %q", got.Libc, tt.want)
			}
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	f := NewFingerprinter(
		WithRuntime("linux", "arm64"),
		WithReporter(&mockReporter{report: &Report{GlibcVersionRuntime: "2.31"}}),
	)

	first := f.Fingerprint(context.Background())
	second := f.Fingerprint(context.Background())
	if first != second {
		t.Errorf("fingerprint not stable: %+v vs %+v", first, second)
	}
	if first.String() != "linux-arm64-glibc" {
		t.Errorf("String() = %q", first.String())
	}
}

func TestFingerprint_RealHost(t *testing.T) {
	key := NewFingerprinter().Fingerprint(context.Background())

	if key.OS == "" || key.Arch == "" {
		t.Fatalf("empty fingerprint: %+v", key)
	}
	if runtime.GOOS == "linux" {
		if key.Libc != LibcGlibc && key.Libc != LibcMusl {
			t.Errorf("Libc = %q, want glibc or musl", key.Libc)
		}
	} else if key.Libc != LibcNone {
		t.Errorf("Libc = %q on %s, want empty", key.Libc, runtime.GOOS)
	}
}

func TestHostReporter_Report(t *testing.T) {
	tests := []struct {
		name      string
		getconf   func(context.Context) ([]byte, error)
		wantErr   bool
		wantGlibc string
	}{
		{
			name:      "glibc system",
			getconf:   func(context.Context) ([]byte, error) { return []byte("glibc 2.35\n"), nil },
			wantGlibc: "2.35",
		},
		{
			name: "getconf rejects variable",
			getconf: func(context.Context) ([]byte, error) {
				return nil, errors.New("exit status 1")
			},
			wantGlibc: "",
		},
		{
			name: "getconf missing",
			getconf: func(context.Context) ([]byte, error) {
				return nil, &exec.Error{Name: "getconf", Err: exec.ErrNotFound}
			},
			wantErr: true,
		},
		{
			name:      "unexpected output",
			getconf:   func(context.Context) ([]byte, error) { return []byte("undefined"), nil },
			wantGlibc: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &HostReporter{getconf: tt.getconf}
			report, err := r.Report(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Report() error = %v", err)
			}
			if report.GlibcVersionRuntime != tt.wantGlibc {
				t.Errorf("GlibcVersionRuntime = %q, want %q", report.GlibcVersionRuntime, tt.wantGlibc)
			}
		})
	}
}

func TestKey_Predicates(t *testing.T) {
	musl := Key{OS: OSLinux, Arch: ArchX64, Libc: LibcMusl}
	if !musl.IsLinux() || !musl.IsMusl() || musl.IsMacOS() || musl.IsWindows() {
		t.Errorf("unexpected predicates for %+v", musl)
	}

	m1 := Key{OS: OSMacOS, Arch: ArchARM64}
	if !m1.IsAppleSilicon() || m1.IsMusl() {
		t.Errorf("unexpected predicates for %+v", m1)
	}
	if m1.String() != "darwin-arm64" {
		t.Errorf("String() = %q, want darwin-arm64", m1.String())
	}
}
