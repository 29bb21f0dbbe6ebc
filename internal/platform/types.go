// Package platform fingerprints the running host for native artifact selection.
//
// It reports the operating system, CPU architecture and, on Linux, the C
// library flavor (glibc or musl) using the naming scheme of the prebuilt
// canvas bindings: "win32", "darwin", "linux" for the OS and "x64", "arm64",
// "arm" for the architecture. The same information is injected as a
// read-only table into Lua configurations.
package platform

import (
	"context"
	"strings"
)

// Operating system names as they appear in artifact names.
const (
	OSWindows = "win32"
	OSMacOS   = "darwin"
	OSLinux   = "linux"
)

// CPU architecture names as they appear in artifact names.
const (
	ArchX64   = "x64"
	ArchARM64 = "arm64"
	ArchARM   = "arm"
)

// C library flavors. LibcNone is used on every non-Linux platform.
const (
	LibcGlibc = "glibc"
	LibcMusl  = "musl"
	LibcNone  = ""
)

// Linux distribution family constants.
// These represent canonical family names for grouping related distributions.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Key identifies which artifact variant applies to a host.
// It is immutable once computed.
type Key struct {
	OS   string // "win32", "darwin", "linux" or the raw GOOS
	Arch string // "x64", "arm64", "arm" or the raw GOARCH
	Libc string // "glibc" or "musl" on Linux, empty elsewhere
}

// String renders the key as os-arch[-libc].
func (k Key) String() string {
	parts := []string{k.OS, k.Arch}
	if k.Libc != LibcNone {
		parts = append(parts, k.Libc)
	}
	return strings.Join(parts, "-")
}

// IsLinux returns true if the platform is Linux.
func (k Key) IsLinux() bool {
	return k.OS == OSLinux
}

// IsMacOS returns true if the platform is macOS.
func (k Key) IsMacOS() bool {
	return k.OS == OSMacOS
}

// IsWindows returns true if the platform is Windows.
func (k Key) IsWindows() bool {
	return k.OS == OSWindows
}

// IsMusl returns true on musl-based Linux systems such as Alpine.
func (k Key) IsMusl() bool {
	return k.IsLinux() && k.Libc == LibcMusl
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (k Key) IsAppleSilicon() bool {
	return k.OS == OSMacOS && k.Arch == ArchARM64
}

// Report is the runtime diagnostics report consulted for libc detection.
// An empty GlibcVersionRuntime means the running system does not use glibc.
type Report struct {
	GlibcVersionRuntime string
	Platform            string // distro ID (e.g., "ubuntu", "alpine")
	Family              string // canonical family (e.g., "debian", "alpine")
	Version             string // distro version (e.g., "22.04")
}

// Reporter produces a runtime diagnostics report.
// An error means no report is available on this host.
type Reporter interface {
	Report(ctx context.Context) (*Report, error)
}
