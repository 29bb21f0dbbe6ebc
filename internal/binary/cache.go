package binary

import "os"

// IsCached reports whether the descriptor's binary is already provisioned.
// Any stat failure counts as a miss.
func IsCached(d *Descriptor) bool {
	if d == nil {
		return false
	}
	return fileExists(d.FinalPath)
}

// fileExists checks if a regular file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
