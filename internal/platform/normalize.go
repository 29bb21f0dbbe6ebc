package platform

import (
	"strings"
)

// familyMap maps distribution names to their canonical family names.
// This is used to normalize variations of family strings from gopsutil.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian, // gopsutil might return ubuntu as family
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// normalizeOS converts GOOS values to artifact OS names.
// Unknown values pass through so they can be reported verbatim.
func normalizeOS(goos string) string {
	switch goos {
	case "windows":
		return OSWindows
	case "darwin", "macos":
		return OSMacOS
	default:
		return goos
	}
}

// normalizeArch converts GOARCH values to artifact architecture names.
func normalizeArch(goarch string) string {
	switch goarch {
	case "amd64", "x86_64":
		return ArchX64
	case "arm64", "aarch64":
		return ArchARM64
	case "arm", "armv7", "armv7l":
		return ArchARM
	case "386":
		return "ia32"
	default:
		return goarch
	}
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
// Uses a package-level lookup table for explicit mapping.
func mapFamily(family string) string {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if canonical, ok := familyMap[normalized]; ok {
		return canonical
	}

	// Return "unknown" for unrecognized families
	return FamilyUnknown
}
