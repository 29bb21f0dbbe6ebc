package binary

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// extractDirName is the directory under the scratch dir that receives the
// archive contents.
const extractDirName = "extract"

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks a .tar.gz archive under scratchDir and returns the
// directory that holds its contents. Malformed input yields an
// *ExtractionError.
func (e *Extractor) Extract(archivePath, scratchDir string) (string, error) {
	root := filepath.Join(scratchDir, extractDirName)
	if err := e.ExtractTarGz(archivePath, root); err != nil {
		return "", &ExtractionError{Archive: archivePath, Cause: err}
	}
	return root, nil
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory
func (e *Extractor) ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	cleanDest := filepath.Clean(destDir)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target := filepath.Join(cleanDest, filepath.FromSlash(header.Name))
		if !within(cleanDest, target) {
			return fmt.Errorf("illegal file path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := writeEntry(tarReader, target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			linkTarget := header.Linkname
			if !filepath.IsAbs(linkTarget) {
				linkTarget = filepath.Join(filepath.Dir(target), linkTarget)
			}
			if filepath.IsAbs(header.Linkname) || !within(cleanDest, linkTarget) {
				return fmt.Errorf("illegal symlink target: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			// Skip other types (hard links, devices, fifos)
			continue
		}
	}

	return nil
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if mode == 0 {
		mode = 0644
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return outFile.Close()
}

// within reports whether target is dir or lies beneath it.
func within(dir, target string) bool {
	return target == dir || strings.HasPrefix(target, dir+string(os.PathSeparator))
}

// Locate finds the native binary in an extracted tree. It looks in the
// preferred subdirectory if present, otherwise in the lexicographically
// greatest immediate subdirectory, otherwise in root itself.
func Locate(root, preferred, binaryName string) (string, error) {
	dir, err := chooseDir(root, preferred)
	if err != nil {
		return "", &EmptyArchiveError{Root: root}
	}

	candidate := filepath.Join(dir, binaryName)
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", &EmptyArchiveError{Root: root}
	}

	// Links must resolve to a file inside the extracted tree.
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", &EmptyArchiveError{Root: root}
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil || !within(realRoot, resolved) {
		return "", &EmptyArchiveError{Root: root}
	}
	return candidate, nil
}

func chooseDir(root, preferred string) (string, error) {
	if preferred != "" {
		p := filepath.Join(root, preferred)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read extracted root: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) == 0 {
		return root, nil
	}
	sort.Strings(dirs)
	return filepath.Join(root, dirs[len(dirs)-1]), nil
}
