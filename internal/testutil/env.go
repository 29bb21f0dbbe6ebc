// Package testutil provides utilities for testing provisioning in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// EnvConfig names the environment variable the CLI reads its default
// config path from.
const EnvConfig = "SKIACANVAS_CONFIG"

// Env describes the isolated directories created by SetupTestEnv.
type Env struct {
	Root      string // working directory for the test
	ConfigDir string
	CacheDir  string // use as node_binary_path
	FontsDir  string
}

// SetupTestEnv creates isolated test directories and makes Root the working
// directory, so the relative default cache path never touches the checkout.
// It clears EnvConfig and points HOME and XDG_CACHE_HOME into Root.
//
// Cleanup is handled by t.TempDir() and t.Chdir().
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	root := t.TempDir()
	env := &Env{
		Root:      root,
		ConfigDir: filepath.Join(root, "config"),
		CacheDir:  filepath.Join(root, "cache"),
		FontsDir:  filepath.Join(root, "fonts"),
	}

	t.Setenv(EnvConfig, "")
	t.Setenv("HOME", filepath.Join(root, "home"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "home", ".cache"))

	for _, dir := range []string{env.ConfigDir, env.CacheDir, env.FontsDir, filepath.Join(root, "home")} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	t.Chdir(root)
	return env
}

// WriteConfig writes a config file under ConfigDir and returns its path.
func (e *Env) WriteConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.ConfigDir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config %s: %v", path, err)
	}
	return path
}
