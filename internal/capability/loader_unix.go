//go:build darwin || linux || freebsd

package capability

import (
	"github.com/ebitengine/purego"
)

// dlLibrary is a dlopen handle.
type dlLibrary struct {
	handle uintptr
}

// openNative loads with lazy binding and local scope: the module's Node-API
// imports resolve only inside a JavaScript runtime.
func openNative(path string) (library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &dlLibrary{handle: handle}, nil
}

func (l *dlLibrary) lookup(name string) (uintptr, error) {
	return purego.Dlsym(l.handle, name)
}

func (l *dlLibrary) close() error {
	return purego.Dlclose(l.handle)
}
