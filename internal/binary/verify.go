package binary

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// VerifyOptions configures archive verification. The zero value trusts
// whatever the registry serves.
type VerifyOptions struct {
	// Checksums maps archive file names to hex SHA256 digests.
	Checksums map[string]string
	// ChecksumsFile is a SHA256SUMS style manifest ("<hex>  <name>").
	ChecksumsFile string
	// Signature requires a detached OpenPGP signature at <url>.sig.
	Signature bool
	// KeyringPath is the armored or binary public keyring for Signature.
	KeyringPath string
}

// Enabled reports whether any verification is configured.
func (o VerifyOptions) Enabled() bool {
	return o.checksumEnabled() || o.Signature
}

func (o VerifyOptions) checksumEnabled() bool {
	return len(o.Checksums) > 0 || o.ChecksumsFile != ""
}

// SignatureURL returns the detached signature location for an archive URL.
func SignatureURL(archiveURL string) string {
	return archiveURL + ".sig"
}

// Verifier handles cryptographic verification of archives
type Verifier struct {
	opts VerifyOptions
}

// NewVerifier creates a new verifier
func NewVerifier(opts VerifyOptions) *Verifier {
	return &Verifier{opts: opts}
}

// Verify checks archivePath, published as archiveName, against the
// configured checksum and signature. signaturePath may be empty when no
// signature is required. Failures are *IntegrityError.
func (v *Verifier) Verify(archivePath, archiveName, signaturePath string) (VerificationMethod, error) {
	method := VerificationNone

	if v.opts.checksumEnabled() {
		if err := v.verifySHA256(archivePath, archiveName); err != nil {
			return VerificationNone, &IntegrityError{Archive: archiveName, Method: VerificationSHA256, Cause: err}
		}
		method = VerificationSHA256
	}

	if v.opts.Signature {
		if signaturePath == "" {
			return VerificationNone, &IntegrityError{Archive: archiveName, Method: VerificationGPG, Cause: fmt.Errorf("signature required but not available")}
		}
		if err := v.verifyGPG(archivePath, signaturePath); err != nil {
			return VerificationNone, &IntegrityError{Archive: archiveName, Method: VerificationGPG, Cause: err}
		}
		method = VerificationGPG
	}

	return method, nil
}

// verifyGPG verifies a file using GPG signature
func (v *Verifier) verifyGPG(archivePath, signaturePath string) error {
	keyring, err := loadKeyring(v.opts.KeyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Try armored first
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, archiveFile, sigFile, nil)
	if err != nil {
		if _, err := archiveFile.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind archive: %w", err)
		}
		if _, err := sigFile.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind signature: %w", err)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, archiveFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// verifySHA256 verifies a file using SHA256 checksum
func (v *Verifier) verifySHA256(archivePath, archiveName string) error {
	expected, ok := v.opts.Checksums[archiveName]
	if !ok {
		if v.opts.ChecksumsFile == "" {
			return fmt.Errorf("checksum not found for %s", archiveName)
		}
		var err error
		expected, err = findChecksum(v.opts.ChecksumsFile, archiveName)
		if err != nil {
			return fmt.Errorf("find checksum: %w", err)
		}
	}

	actual, err := calculateSHA256(archivePath)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	// Compare checksums (case-insensitive)
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: actual %s, expected %s", actual, expected)
	}
	return nil
}

// loadKeyring loads an armored or binary OpenPGP keyring.
func loadKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, fmt.Errorf("no keyring configured")
	}

	keyringFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		if _, err := keyringFile.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind keyring: %w", err)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file
// Format: "abc123def456  filename.tar.gz"
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		// sha256sum prefixes binary-mode names with '*'
		checksumFilename := strings.TrimPrefix(parts[1], "*")
		if checksumFilename == filename || filepath.Base(checksumFilename) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
