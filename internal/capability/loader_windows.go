//go:build windows

package capability

import (
	"syscall"
)

type dllLibrary struct {
	dll *syscall.DLL
}

func openNative(path string) (library, error) {
	dll, err := syscall.LoadDLL(path)
	if err != nil {
		return nil, err
	}
	return &dllLibrary{dll: dll}, nil
}

func (l *dllLibrary) lookup(name string) (uintptr, error) {
	proc, err := l.dll.FindProc(name)
	if err != nil {
		return 0, err
	}
	return proc.Addr(), nil
}

func (l *dllLibrary) close() error {
	return l.dll.Release()
}
