//go:build !darwin && !windows && !linux

package clip

import (
	"fmt"
	"runtime"
)

type headlessBackend struct{}

// New returns a backend that reports the clipboard as unavailable.
func New() Backend { return headlessBackend{} }

func (headlessBackend) Name() string { return "headless (unsupported)" }

func (headlessBackend) WritePNG(_ []byte) error {
	return fmt.Errorf("%w: no clipboard support on %s", ErrInit, runtime.GOOS)
}
