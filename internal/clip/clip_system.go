//go:build darwin || windows || linux

package clip

import (
	"fmt"
	"runtime"

	"golang.design/x/clipboard"
)

type systemBackend struct{}

// New returns the platform clipboard backend. The clipboard is opened lazily
// on the first write so that CLI sub-commands that never copy anything don't
// need a display server.
func New() Backend { return systemBackend{} }

func (systemBackend) Name() string { return "system clipboard (" + runtime.GOOS + ")" }

func (systemBackend) WritePNG(data []byte) error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}
	if changed := clipboard.Write(clipboard.FmtImage, data); changed == nil {
		return fmt.Errorf("%w: %d bytes rejected", ErrWrite, len(data))
	}
	return nil
}
