//go:build !darwin && !linux && !freebsd && !windows

package capability

func openNative(string) (library, error) {
	return nil, ErrUnsupported
}
