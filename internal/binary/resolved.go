package binary

import "sync/atomic"

// ResolvedPath is a read-only handle to the location of the provisioned
// binary. A Manager publishes into it after every successful
// EnsureArtifact; consumers only read.
type ResolvedPath struct {
	path atomic.Pointer[string]
}

// Get returns the published path, or false before any successful call.
func (r *ResolvedPath) Get() (string, bool) {
	if r == nil {
		return "", false
	}
	p := r.path.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (r *ResolvedPath) publish(path string) {
	if r != nil {
		r.path.Store(&path)
	}
}
