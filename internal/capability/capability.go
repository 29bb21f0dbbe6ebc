// Package capability loads the provisioned native canvas module and exposes
// what it provides.
//
// The module is a Node-API addon: its drawing classes are registered with a
// JavaScript runtime through napi_register_module_v1, so from Go the useful
// questions are whether the file is a loadable addon and which raw symbols
// it exports. Drawing itself is out of scope.
package capability

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// RegisterSymbol is the Node-API entry point every addon exports.
const RegisterSymbol = "napi_register_module_v1"

// Export names a binding the canvas module registers with its host runtime.
type Export string

// Bindings registered by the canvas module.
const (
	ExportCanvas         Export = "Canvas"
	ExportLoadImage      Export = "loadImage"
	ExportFontLibrary    Export = "FontLibrary"
	ExportPath2D         Export = "Path2D"
	ExportImage          Export = "Image"
	ExportImageData      Export = "ImageData"
	ExportCanvasGradient Export = "CanvasGradient"
	ExportCanvasPattern  Export = "CanvasPattern"
	ExportCanvasTexture  Export = "CanvasTexture"
	ExportApp            Export = "App"
	ExportDOMMatrix      Export = "DOMMatrix"
	ExportDOMPoint       Export = "DOMPoint"
	ExportDOMRect        Export = "DOMRect"
	ExportWindow         Export = "Window"
)

// Exports lists every binding in registration order. These are the names
// the module declares to its host runtime, not symbols in the shared object.
var Exports = []Export{
	ExportCanvas, ExportLoadImage, ExportFontLibrary, ExportPath2D,
	ExportImage, ExportImageData, ExportCanvasGradient, ExportCanvasPattern,
	ExportCanvasTexture, ExportApp, ExportDOMMatrix, ExportDOMPoint,
	ExportDOMRect, ExportWindow,
}

var (
	// ErrNotNodeModule means the library loaded but lacks RegisterSymbol.
	ErrNotNodeModule = errors.New("not a Node-API module")
	// ErrClosed is returned by lookups after Close.
	ErrClosed = errors.New("capability closed")
	// ErrUnsupported means dynamic loading is unavailable on this OS.
	ErrUnsupported = errors.New("dynamic loading not supported on this platform")
)

// LoadError reports why the module at Path could not be loaded.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load native module %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// library is an open shared object.
type library interface {
	lookup(name string) (uintptr, error)
	close() error
}

// openLibrary is replaced in tests.
var openLibrary = openNative

// Capability is a loaded canvas module. The zero value and a nil pointer
// report every export as absent.
type Capability struct {
	// Path the module was loaded from.
	Path string

	mu       sync.Mutex
	lib      library
	register uintptr
}

// Load opens the module at path and checks that it is a Node-API addon.
func Load(path string) (*Capability, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Cause: fmt.Errorf("not a regular file")}
	}

	lib, err := openLibrary(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	register, err := lib.lookup(RegisterSymbol)
	if err != nil || register == 0 {
		_ = lib.close()
		return nil, &LoadError{Path: path, Cause: ErrNotNodeModule}
	}

	return &Capability{Path: path, lib: lib, register: register}, nil
}

// Provides reports whether e is one of the declared Exports of an open
// module. Only RegisterSymbol is resolved; the bindings themselves are
// created inside the host runtime and cannot be checked individually from Go,
// so every declared export is reported once registration is present.
func (c *Capability) Provides(e Export) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lib == nil || c.register == 0 {
		return false
	}
	for _, known := range Exports {
		if known == e {
			return true
		}
	}
	return false
}

// Available returns the declared exports of an open module, in registration
// order. It is empty when the module is closed or was never loaded. Use
// Symbol to verify a raw symbol.
func (c *Capability) Available() []Export {
	var out []Export
	for _, e := range Exports {
		if c.Provides(e) {
			out = append(out, e)
		}
	}
	return out
}

// Symbol looks up a raw exported symbol.
func (c *Capability) Symbol(name string) (uintptr, error) {
	if c == nil {
		return 0, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lib == nil {
		return 0, ErrClosed
	}
	addr, err := c.lib.lookup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", name, err)
	}
	return addr, nil
}

// Close releases the library. It is safe to call more than once.
func (c *Capability) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lib == nil {
		return nil
	}
	err := c.lib.close()
	c.lib = nil
	c.register = 0
	return err
}
