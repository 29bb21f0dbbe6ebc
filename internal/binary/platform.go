package binary

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ZebulonRouseFrantzich/skiacanvas/internal/platform"
)

// archOS is the (os, arch) row of the artifact table.
type archOS struct {
	os   string
	arch string
}

// artifactTable maps a platform row to a function of the C library flavor.
// A function returning "" means no artifact is published for that flavor.
var artifactTable = map[archOS]func(libc string) string{
	{platform.OSWindows, platform.ArchX64}: fixedName("win32-x64"),
	{platform.OSMacOS, platform.ArchX64}:   fixedName("darwin-x64"),
	{platform.OSMacOS, platform.ArchARM64}: fixedName("darwin-arm64"),
	{platform.OSLinux, platform.ArchX64}:   libcName("linux-x64"),
	{platform.OSLinux, platform.ArchARM64}: libcName("linux-arm64"),
}

// arm32Name is only consulted when ResolveOptions.AllowARM32 is set.
const arm32Name = "linux-arm-glibc"

func fixedName(name string) func(string) string {
	return func(string) string { return name }
}

func libcName(prefix string) func(string) string {
	return func(libc string) string {
		if libc == platform.LibcMusl {
			return prefix + "-" + platform.LibcMusl
		}
		return prefix + "-" + platform.LibcGlibc
	}
}

// ArtifactName maps a platform key to the published artifact name.
func ArtifactName(key platform.Key, allowARM32 bool) (string, error) {
	if allowARM32 && key.OS == platform.OSLinux && key.Arch == platform.ArchARM && key.Libc != platform.LibcMusl {
		return arm32Name, nil
	}

	nameFor, ok := artifactTable[archOS{key.OS, key.Arch}]
	if !ok {
		return "", &UnsupportedPlatformError{OS: key.OS, Arch: key.Arch}
	}
	return nameFor(key.Libc), nil
}

// Resolve derives the artifact descriptor for a platform key. It performs
// no I/O; equal inputs always produce equal descriptors.
//
// URL pattern: <registry>/-/binary/<package>/v<version>/<name>.tar.gz
func Resolve(key platform.Key, version, baseDir string, opts ResolveOptions) (*Descriptor, error) {
	name, err := ArtifactName(key, opts.AllowARM32)
	if err != nil {
		return nil, err
	}

	v, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", version, err)
	}
	version = v.String()

	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	registry := strings.TrimRight(opts.Registry, "/")
	if registry == "" {
		registry = DefaultRegistry
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}

	archive := name + ArchiveExt
	fileName := fmt.Sprintf("%s_%s.node", version, name)
	if opts.LegacyLayout {
		fileName = name + ".node"
	}

	return &Descriptor{
		Version:         version,
		Key:             key,
		Name:            name,
		URL:             fmt.Sprintf("%s/-/binary/%s/v%s/%s", registry, pkg, version, archive),
		ArchiveFileName: archive,
		FinalPath:       filepath.Join(PackagePath(baseDir), fileName),
	}, nil
}

// PackagePath returns the cache directory for a base directory.
func PackagePath(baseDir string) string {
	return filepath.Join(baseDir, PackageDir)
}
