package config

import (
	"errors"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "empty binary path", mutate: func(c *Config) { c.NodeBinaryPath = "  " }, wantField: "node_binary_path"},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -1 }, wantField: "timeout"},
		{name: "timeout too long", mutate: func(c *Config) { c.Timeout = MaxTimeoutMS + 1 }, wantField: "timeout"},
		{name: "retries at limit", mutate: func(c *Config) { c.DownloadRetries = MaxDownloadRetries }},
		{name: "too many retries", mutate: func(c *Config) { c.DownloadRetries = MaxDownloadRetries + 1 }, wantField: "download_retries"},
		{name: "registry without scheme", mutate: func(c *Config) { c.Registry = "registry.npmmirror.com" }, wantField: "registry"},
		{name: "registry with query", mutate: func(c *Config) { c.Registry = "https://mirror.example.com/?x=1" }, wantField: "registry"},
		{name: "registry without host", mutate: func(c *Config) { c.Registry = "https://" }, wantField: "registry"},
		{name: "http registry allowed", mutate: func(c *Config) { c.Registry = "http://127.0.0.1:8080" }},
		{name: "empty package", mutate: func(c *Config) { c.Package = "" }, wantField: "package"},
		{name: "uppercase package", mutate: func(c *Config) { c.Package = "Skia-Canvas" }, wantField: "package"},
		{name: "package traversal", mutate: func(c *Config) { c.Package = "../skia" }, wantField: "package"},
		{name: "scoped package", mutate: func(c *Config) { c.Package = "@napi-rs/canvas" }},
		{name: "partial version", mutate: func(c *Config) { c.Version = "1.0" }, wantField: "version"},
		{name: "prerelease version", mutate: func(c *Config) { c.Version = "2.0.0-rc.1" }},
		{
			name:      "alias without paths",
			mutate:    func(c *Config) { c.FontAliases = map[string][]string{"Inter": {}} },
			wantField: `font_aliases["Inter"]`,
		},
		{
			name:      "absolute font path",
			mutate:    func(c *Config) { c.FontAliases = map[string][]string{"Inter": {"/etc/fonts/inter.ttf"}} },
			wantField: `font_aliases["Inter"][0]`,
		},
		{
			name:      "font path traversal",
			mutate:    func(c *Config) { c.FontAliases = map[string][]string{"Inter": {"ok.ttf", "../../secret.ttf"}} },
			wantField: `font_aliases["Inter"][1]`,
		},
		{
			name:   "nested font path",
			mutate: func(c *Config) { c.FontAliases = map[string][]string{"Inter": {"inter/Inter.ttf"}} },
		},
		{
			name:      "empty alias name",
			mutate:    func(c *Config) { c.FontAliases = map[string][]string{"": {"a.ttf"}} },
			wantField: "font_aliases",
		},
		{
			name:      "short checksum",
			mutate:    func(c *Config) { c.Verify.Checksums = map[string]string{"a.tar.gz": "abc"} },
			wantField: `verify.checksums["a.tar.gz"]`,
		},
		{
			name:      "signature without keyring",
			mutate:    func(c *Config) { c.Verify.Signature = true },
			wantField: "verify.keyring",
		},
		{
			name: "signature with keyring",
			mutate: func(c *Config) {
				c.Verify.Signature = true
				c.Verify.Keyring = "release.asc"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", valErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_TooManyAliases(t *testing.T) {
	c := Default()
	c.FontAliases = make(map[string][]string)
	for i := 0; i <= MaxFontAliases; i++ {
		c.FontAliases[strings.Repeat("a", i+1)] = []string{"a.ttf"}
	}

	var valErr *ValidationError
	if err := c.Validate(); !errors.As(err, &valErr) || valErr.Field != "font_aliases" {
		t.Errorf("Validate() error = %v, want font_aliases limit", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	withField := &ValidationError{Field: "timeout", Message: "must be positive"}
	if got := withField.Error(); got != "config validation failed for timeout: must be positive" {
		t.Errorf("Error() = %q", got)
	}

	bare := &ValidationError{Message: "broken"}
	if got := bare.Error(); got != "config validation failed: broken" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.NodeBinaryPath != "data/assets/canvas" {
		t.Errorf("NodeBinaryPath = %q", c.NodeBinaryPath)
	}
	if c.TimeoutDuration().Seconds() != 60 {
		t.Errorf("TimeoutDuration() = %v, want 60s", c.TimeoutDuration())
	}
	if c.Registry != "https://registry.npmmirror.com" || c.Package != "skia-canvas" || c.Version != "1.0.2" {
		t.Errorf("Default() = %+v", c)
	}
}
