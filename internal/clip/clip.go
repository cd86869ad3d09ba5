// Package clip writes images to the system clipboard. Build constraints
// select the implementation:
//
//	clip_system.go: macOS, Windows and Linux via golang.design/x/clipboard
//	clip_other.go:  every other platform, always fails with ErrInit
//
// Backends are not safe for use off the main thread; callers route every
// call through a mainthread.Loop.
package clip

import "errors"

var (
	// ErrInit means the platform clipboard could not be opened.
	ErrInit = errors.New("clipboard initialization failed")
	// ErrWrite means the clipboard rejected the data.
	ErrWrite = errors.New("clipboard write failed")
)

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// WritePNG replaces the clipboard contents with a PNG-encoded image.
	WritePNG(data []byte) error
}
