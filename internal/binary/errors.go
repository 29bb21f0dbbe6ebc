package binary

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrDownload            = errors.New("download failed")
	ErrExtraction          = errors.New("extraction failed")
	ErrEmptyArchive        = errors.New("native binary not found in archive")
	ErrRelocation          = errors.New("relocation failed")
	ErrIntegrity           = errors.New("integrity check failed")
)

// UnsupportedPlatformError is returned when no artifact exists for the
// fingerprinted operating system and architecture.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s/%s", e.OS, e.Arch)
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// DownloadError describes a failed fetch. StatusCode is zero when the
// server never answered.
type DownloadError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

func (e *DownloadError) Is(target error) bool {
	return target == ErrDownload
}

// ExtractionError is returned for malformed gzip or tar input.
type ExtractionError struct {
	Archive string
	Cause   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// EmptyArchiveError is returned when the extracted tree holds no binary.
type EmptyArchiveError struct {
	Root string
}

func (e *EmptyArchiveError) Error() string {
	return fmt.Sprintf("no %s found under %s", BinaryFileName, e.Root)
}

func (e *EmptyArchiveError) Is(target error) bool {
	return target == ErrEmptyArchive
}

// RelocationError is returned when the binary cannot be placed at its
// final path. The final path is left untouched.
type RelocationError struct {
	Src   string
	Dst   string
	Cause error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("relocate %s to %s: %v", e.Src, e.Dst, e.Cause)
}

func (e *RelocationError) Unwrap() error { return e.Cause }

func (e *RelocationError) Is(target error) bool {
	return target == ErrRelocation
}

// IntegrityError is returned when checksum or signature verification of a
// downloaded archive fails.
type IntegrityError struct {
	Archive string
	Method  VerificationMethod
	Cause   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s verification of %s: %v", e.Method, e.Archive, e.Cause)
}

func (e *IntegrityError) Unwrap() error { return e.Cause }

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
