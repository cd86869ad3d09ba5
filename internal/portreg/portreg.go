// Package portreg holds the backend port discovered from the sidecar handshake.
package portreg

import "sync"

// Registry is a single-writer, multi-reader cell for the backend port.
// The zero value is ready to use and reports 0 (not yet known).
type Registry struct {
	mu   sync.Mutex
	port uint16
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// Get returns the current port, or 0 if the handshake has not happened yet.
func (r *Registry) Get() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}

// Set overwrites the stored port. A zero port is ignored: once known, the
// port is never reset to unknown.
func (r *Registry) Set(port uint16) {
	if port == 0 {
		return
	}
	r.mu.Lock()
	r.port = port
	r.mu.Unlock()
}
