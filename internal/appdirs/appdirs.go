// Package appdirs resolves the application's per-user data directory and its
// bundled resource directory.
package appdirs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Dirs resolves directories for one application identifier, e.g.
// "com.example.desktop". The override fields, when set, are returned as is.
type Dirs struct {
	Identifier string

	DataOverride     string
	ResourceOverride string
}

// Data returns the per-user data directory:
//
//	macOS:   ~/Library/Application Support/<id>
//	Windows: %AppData%\<id>
//	other:   $XDG_DATA_HOME/<id>, falling back to ~/.local/share/<id>
func (d Dirs) Data() (string, error) {
	if d.DataOverride != "" {
		return filepath.Abs(d.DataOverride)
	}
	if d.Identifier == "" {
		return "", errors.New("appdirs: empty identifier")
	}
	base, err := dataBase(runtime.GOOS)
	if err != nil {
		return "", fmt.Errorf("appdirs: data dir: %w", err)
	}
	return filepath.Join(base, d.Identifier), nil
}

func dataBase(goos string) (string, error) {
	switch goos {
	case "darwin", "windows", "ios":
		return os.UserConfigDir()
	}
	if x := os.Getenv("XDG_DATA_HOME"); x != "" && filepath.IsAbs(x) {
		return x, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// Resource returns the directory holding bundled resources: the directory of
// the running executable, or on macOS the app bundle's Contents/Resources.
func (d Dirs) Resource() (string, error) {
	if d.ResourceOverride != "" {
		return filepath.Abs(d.ResourceOverride)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("appdirs: executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" && filepath.Base(dir) == "MacOS" {
		return filepath.Join(filepath.Dir(dir), "Resources"), nil
	}
	return dir, nil
}
