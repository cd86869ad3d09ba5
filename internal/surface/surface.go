// Package surface is the boundary the UI talks to: the backend port, the
// app data directory, and copying an image to the clipboard. The same
// operations are served over gRPC (service.go) and HTTP/JSON (http.go).
package surface

import (
	"context"
	"log/slog"

	"go.klb.dev/tether/internal/hub"
)

// PortReader reads the backend port. portreg.Registry satisfies it.
type PortReader interface {
	Get() uint16
}

// DataDir resolves the app data directory. appdirs.Dirs satisfies it.
type DataDir interface {
	Data() (string, error)
}

// Copier copies an image path to the clipboard. clipimage.Bridge satisfies it.
type Copier interface {
	Copy(ctx context.Context, path string) error
}

// Surface forwards UI requests to the components that serve them.
type Surface struct {
	ports  PortReader
	dirs   DataDir
	copier Copier
	events *hub.Hub
}

// New returns a Surface.
func New(ports PortReader, dirs DataDir, copier Copier, events *hub.Hub) *Surface {
	return &Surface{ports: ports, dirs: dirs, copier: copier, events: events}
}

// BackendPort returns the sidecar's port, or 0 if the handshake hasn't
// happened yet.
func (s *Surface) BackendPort() uint16 { return s.ports.Get() }

// AppDataDir returns the per-user data directory, or "" if it cannot be
// determined.
func (s *Surface) AppDataDir() string {
	d, err := s.dirs.Data()
	if err != nil {
		slog.Warn("app data dir unavailable", "err", err)
		return ""
	}
	return d
}

// CopyImage copies the image at path to the clipboard. It blocks until the
// write has happened on the main thread.
func (s *Surface) CopyImage(ctx context.Context, path string) error {
	if err := s.copier.Copy(ctx, path); err != nil {
		slog.Warn("copy image failed", "path", path, "err", err)
		return err
	}
	return nil
}

// Subscribe registers a listener for backend-port events. The current port,
// if already known, is delivered first so late subscribers don't miss it.
func (s *Surface) Subscribe(id string) *hub.Subscription {
	sub := s.events.Subscribe(id, 4)
	if p := s.ports.Get(); p != 0 {
		sub.Send(hub.PortEvent{Port: p})
	}
	return sub
}
