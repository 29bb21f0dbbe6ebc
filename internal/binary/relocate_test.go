package binary

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRelocate(t *testing.T) {
	tmpDir := t.TempDir()
	src := writeFile(t, filepath.Join(tmpDir, "scratch", "v6", "index.node"), "native")
	finalPath := filepath.Join(tmpDir, "cache", "package", "1.0.2_darwin-arm64.node")

	if err := Relocate(src, finalPath); err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}

	content, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("failed to read final file: %v", err)
	}
	if string(content) != "native" {
		t.Errorf("content = %q", content)
	}
}

func TestRelocate_OverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	src := writeFile(t, filepath.Join(tmpDir, "index.node"), "new")
	finalPath := writeFile(t, filepath.Join(tmpDir, "package", "linux-x64-glibc.node"), "old")

	if err := Relocate(src, finalPath); err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	content, _ := os.ReadFile(finalPath)
	if string(content) != "new" {
		t.Errorf("content = %q, want %q", content, "new")
	}
}

func TestRelocate_MissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "missing.node")
	finalPath := filepath.Join(tmpDir, "package", "x.node")

	err := Relocate(src, finalPath)

	var re *RelocationError
	if !errors.As(err, &re) {
		t.Fatalf("expected RelocationError, got %v", err)
	}
	if re.Src != src || re.Dst != finalPath {
		t.Errorf("error carries %q -> %q", re.Src, re.Dst)
	}
	if !errors.Is(err, ErrRelocation) {
		t.Error("expected errors.Is(err, ErrRelocation)")
	}
	if _, err := os.Stat(finalPath); !os.IsNotExist(err) {
		t.Error("final path must not exist after failed relocation")
	}
}

func TestRelocate_SourceIsDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := Relocate(tmpDir, filepath.Join(tmpDir, "out.node")); !errors.Is(err, ErrRelocation) {
		t.Fatalf("expected RelocationError, got %v", err)
	}
}

func TestCopyAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	src := writeFile(t, filepath.Join(tmpDir, "src.node"), "copied bytes")
	dst := filepath.Join(tmpDir, "dst.node")

	if err := copyAtomic(src, dst); err != nil {
		t.Fatalf("copyAtomic() error = %v", err)
	}

	content, _ := os.ReadFile(dst)
	if string(content) != "copied bytes" {
		t.Errorf("content = %q", content)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0755 {
			t.Errorf("permissions = %o, want 0755", info.Mode().Perm())
		}
	}

	// Source stays in place; only the copy is renamed.
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed: %v", err)
	}

	entries, _ := os.ReadDir(tmpDir)
	for _, e := range entries {
		if e.Name() != "src.node" && e.Name() != "dst.node" {
			t.Errorf("unexpected leftover %s", e.Name())
		}
	}
}

func TestCopyAtomic_FailureLeavesDestinationUntouched(t *testing.T) {
	tmpDir := t.TempDir()
	dst := writeFile(t, filepath.Join(tmpDir, "dst.node"), "original")

	if err := copyAtomic(filepath.Join(tmpDir, "missing"), dst); err == nil {
		t.Fatal("expected error")
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "original" {
		t.Errorf("destination modified: %q", content)
	}
}

func TestRelocate_SymlinkSourceCopiesTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "scratch", "v6", "real.node"), "native")
	src := filepath.Join(tmpDir, "scratch", "v6", "index.node")
	if err := os.Symlink("real.node", src); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	finalPath := filepath.Join(tmpDir, "cache", "package", "1.0.2_linux-x64-glibc.node")

	if err := Relocate(src, finalPath); err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}

	info, err := os.Lstat(finalPath)
	if err != nil {
		t.Fatalf("Lstat() error = %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
		t.Fatalf("final path mode = %v, want a regular file", info.Mode())
	}
	content, _ := os.ReadFile(finalPath)
	if string(content) != "native" {
		t.Errorf("content = %q, want %q", content, "native")
	}
}

func TestRelocate_DanglingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "index.node")
	if err := os.Symlink("missing.node", src); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	finalPath := filepath.Join(tmpDir, "package", "x.node")

	if err := Relocate(src, finalPath); !errors.Is(err, ErrRelocation) {
		t.Fatalf("expected RelocationError, got %v", err)
	}
	if _, err := os.Lstat(finalPath); !os.IsNotExist(err) {
		t.Error("final path must not exist after failed relocation")
	}
}
