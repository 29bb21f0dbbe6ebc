package binary

import (
	"time"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

const (
	// DefaultRegistry is the npm mirror that hosts prebuilt bindings.
	DefaultRegistry = "https://registry.npmmirror.com"
	// DefaultPackage is the package whose binaries are provisioned.
	DefaultPackage = "skia-canvas"
	// DefaultVersion is the pinned binding version.
	DefaultVersion = "1.0.2"

	// BinaryFileName is the native module inside every archive.
	BinaryFileName = "index.node"
	// PreferredSubdir is the archive directory checked before any other.
	PreferredSubdir = "v6"
	// PackageDir is the cache directory under the base directory.
	PackageDir = "package"
	// ArchiveExt is the suffix of every published artifact.
	ArchiveExt = ".tar.gz"
)

// Descriptor identifies one artifact: where it is fetched from and where
// its binary lives once provisioned. It is derived purely from its inputs.
type Descriptor struct {
	Version         string
	Key             platform.Key
	Name            string // e.g. "linux-x64-glibc"
	URL             string
	ArchiveFileName string // <Name>.tar.gz
	FinalPath       string
}

// ResolveOptions adjusts artifact resolution.
type ResolveOptions struct {
	Registry string // defaults to DefaultRegistry
	Package  string // defaults to DefaultPackage
	// LegacyLayout stores the binary as <Name>.node without a version
	// prefix. Upgrading then overwrites the cached file in place.
	LegacyLayout bool
	// AllowARM32 enables the deprecated linux-arm-glibc artifact.
	AllowARM32 bool
}

// VerificationMethod indicates how an archive was verified
type VerificationMethod int

const (
	// VerificationNone means the archive was trusted on download
	VerificationNone VerificationMethod = iota
	// VerificationGPG indicates GPG signature verification was used
	VerificationGPG
	// VerificationSHA256 indicates SHA256 checksum verification was used
	VerificationSHA256
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// State is a step of the provisioning state machine.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateProbing     State = "probing"
	StateCached      State = "cached"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateExtracting  State = "extracting"
	StateRelocating  State = "relocating"
	StateCleaning    State = "cleaning"
	StateReady       State = "ready"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateCached || s == StateReady || s == StateFailed
}

// StateObserver receives every transition of a provisioning attempt.
// The descriptor is nil until resolution succeeds.
type StateObserver interface {
	OnState(d *Descriptor, from, to State)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(d *Descriptor, from, to State)

// OnState implements StateObserver.
func (f StateObserverFunc) OnState(d *Descriptor, from, to State) { f(d, from, to) }

// Progress is a snapshot of a running download. Total is -1 when the
// server sent no Content-Length, in which case Percent stays 0.
type Progress struct {
	Downloaded int64
	Total      int64
	Percent    float64
}

// ProgressObserver receives download progress.
type ProgressObserver interface {
	OnProgress(p Progress)
}

// ProgressObserverFunc adapts a function to ProgressObserver.
type ProgressObserverFunc func(p Progress)

// OnProgress implements ProgressObserver.
func (f ProgressObserverFunc) OnProgress(p Progress) { f(p) }

// Result describes a successful EnsureArtifact call.
type Result struct {
	Descriptor *Descriptor
	Path       string
	State      State // StateCached or StateReady
	Verified   VerificationMethod
	Bytes      int64 // archive size, zero when cached
	Duration   time.Duration
}

// provisioningState is the per-attempt scratch bookkeeping.
type provisioningState struct {
	scratchDir      string
	archivePath     string
	downloadedBytes int64
	extractedRoot   string
}
