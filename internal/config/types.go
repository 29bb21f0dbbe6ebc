// Package config loads the settings that drive native binding provisioning.
//
// Settings come from a sandboxed Lua file (or YAML), layered over defaults
// and under command-line flags. Lua configs see a read-only platform table
// describing the host so they can branch per OS or libc.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Config is the complete provisioning configuration.
type Config struct {
	// Directory the binary is cached under.
	NodeBinaryPath string `koanf:"node_binary_path" json:"node_binary_path"`

	// Download timeout in milliseconds.
	Timeout int `koanf:"timeout" json:"timeout"`

	// Extra download attempts after a transient failure.
	DownloadRetries int `koanf:"download_retries" json:"download_retries,omitempty"`

	Registry string `koanf:"registry" json:"registry"`
	Package  string `koanf:"package" json:"package"`
	Version  string `koanf:"version" json:"version"`

	// Font directory and alias table; paths in FontAliases are relative to
	// FontsPath.
	FontsPath   string              `koanf:"fonts_path" json:"fonts_path,omitempty"`
	FontAliases map[string][]string `koanf:"font_aliases" json:"font_aliases,omitempty"`

	// Use <name>.node instead of <version>_<name>.node.
	LegacyLayout bool `koanf:"legacy_layout" json:"legacy_layout,omitempty"`
	// Permit the linux-arm-glibc artifact.
	AllowARM32 bool `koanf:"allow_arm32" json:"allow_arm32,omitempty"`

	Verify VerifyConfig `koanf:"verify" json:"verify"`
}

// VerifyConfig enables integrity checks on downloaded archives.
type VerifyConfig struct {
	// Archive file name to hex SHA256.
	Checksums     map[string]string `koanf:"checksums" json:"checksums,omitempty"`
	ChecksumsFile string            `koanf:"checksums_file" json:"checksums_file,omitempty"`
	Signature     bool              `koanf:"signature" json:"signature,omitempty"`
	Keyring       string            `koanf:"keyring" json:"keyring,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		NodeBinaryPath: DefaultBinaryPath,
		Timeout:        DefaultTimeoutMS,
		Registry:       DefaultRegistry,
		Package:        DefaultPackage,
		Version:        DefaultVersion,
	}
}

// TimeoutDuration converts the millisecond timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NodeBinaryPath) == "" {
		return &ValidationError{Field: "node_binary_path", Message: "path cannot be empty"}
	}

	if c.Timeout <= 0 || c.Timeout > MaxTimeoutMS {
		return &ValidationError{
			Field:   "timeout",
			Message: fmt.Sprintf("must be between 1 and %d milliseconds (got %d)", MaxTimeoutMS, c.Timeout),
		}
	}

	if c.DownloadRetries < 0 || c.DownloadRetries > MaxDownloadRetries {
		return &ValidationError{
			Field:   "download_retries",
			Message: fmt.Sprintf("must be between 0 and %d (got %d)", MaxDownloadRetries, c.DownloadRetries),
		}
	}

	if err := validateRegistry(c.Registry); err != nil {
		return &ValidationError{Field: "registry", Message: err.Error()}
	}

	if err := validatePackage(c.Package); err != nil {
		return &ValidationError{Field: "package", Message: err.Error()}
	}

	if _, err := semver.StrictNewVersion(strings.TrimPrefix(c.Version, "v")); err != nil {
		return &ValidationError{Field: "version", Message: fmt.Sprintf("invalid version %q: %v", c.Version, err)}
	}

	if len(c.FontAliases) > MaxFontAliases {
		return &ValidationError{
			Field:   "font_aliases",
			Message: fmt.Sprintf("too many aliases (%d), maximum is %d", len(c.FontAliases), MaxFontAliases),
		}
	}
	for alias, paths := range c.FontAliases {
		field := fmt.Sprintf("font_aliases[%q]", alias)
		if strings.TrimSpace(alias) == "" {
			return &ValidationError{Field: "font_aliases", Message: "alias cannot be empty"}
		}
		if len(paths) == 0 {
			return &ValidationError{Field: field, Message: "at least one font path is required"}
		}
		if len(paths) > MaxPathsPerAlias {
			return &ValidationError{Field: field, Message: fmt.Sprintf("too many paths (%d), maximum is %d", len(paths), MaxPathsPerAlias)}
		}
		for i, p := range paths {
			if err := validateFontPath(p); err != nil {
				return &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
			}
		}
	}

	return c.Verify.validate()
}

func (v *VerifyConfig) validate() error {
	if len(v.Checksums) > maxChecksumEntries {
		return &ValidationError{
			Field:   "verify.checksums",
			Message: fmt.Sprintf("too many entries (%d), maximum is %d", len(v.Checksums), maxChecksumEntries),
		}
	}
	for name, sum := range v.Checksums {
		if !sha256Pattern.MatchString(sum) {
			return &ValidationError{
				Field:   fmt.Sprintf("verify.checksums[%q]", name),
				Message: "expected 64 hex characters",
			}
		}
	}
	if v.Signature && v.Keyring == "" {
		return &ValidationError{Field: "verify.keyring", Message: "signature verification requires a keyring"}
	}
	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

var (
	sha256Pattern  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	packagePattern = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._-]*/)?[a-z0-9][a-z0-9._-]*$`)
)

// validateRegistry accepts http and https base URLs without query or fragment.
func validateRegistry(registry string) error {
	if registry == "" {
		return fmt.Errorf("registry cannot be empty")
	}

	u, err := url.Parse(registry)
	if err != nil {
		return fmt.Errorf("invalid registry URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("registry must use https:// or http:// scheme (got: %s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("registry URL has no host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("registry URL must not carry a query or fragment")
	}
	return nil
}

// validatePackage accepts npm package names, scoped or not.
func validatePackage(name string) error {
	if name == "" {
		return fmt.Errorf("package cannot be empty")
	}
	if len(name) > 214 {
		return fmt.Errorf("package name too long (%d chars, max 214)", len(name))
	}
	if !packagePattern.MatchString(name) {
		return fmt.Errorf("invalid package name: %q", name)
	}
	return nil
}

// validateFontPath keeps alias paths inside the fonts directory.
func validateFontPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed, paths are relative to fonts_path: %s", path)
	}
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}
	return nil
}
