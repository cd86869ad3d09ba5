// Package clipimage copies an image file into the system clipboard.
//
// The input is a path as the UI hands it over: possibly a file:// URL,
// possibly relative to one of the application's directories. The file is
// decoded off the main thread and only the final clipboard write is handed to
// the main-thread loop.
package clipimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP; imaging registers BMP and TIFF

	"go.klb.dev/tether/internal/clip"
)

// maxImageSize is the largest file accepted (100 MiB).
const maxImageSize = 100 * 1024 * 1024

var (
	ErrEmptyPath = errors.New("empty image path")
	ErrRead      = errors.New("failed to read image file")
	ErrDecode    = errors.New("failed to decode image")
)

// Normalize strips a file://localhost or file:// prefix and decodes URL
// escapes. Empty or whitespace-only input is rejected.
func Normalize(s string) (string, error) {
	p := strings.TrimSpace(s)
	isURL := true
	switch {
	case strings.HasPrefix(p, "file://localhost"):
		p = strings.TrimPrefix(p, "file://localhost")
	case strings.HasPrefix(p, "file://"):
		p = strings.TrimPrefix(p, "file://")
	default:
		isURL = false
	}
	if isURL {
		if u, err := url.PathUnescape(p); err == nil {
			p = u
		}
		// file:///C:/x.png
		if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
	}
	if strings.TrimSpace(p) == "" {
		return "", ErrEmptyPath
	}
	return p, nil
}

// Locations are the directories a relative path is tried under. Empty
// fields are skipped.
type Locations struct {
	DataDir     string
	WorkDir     string
	ResourceDir string
}

// Candidates returns the paths to try for p, in order. An absolute p is its
// own only candidate; otherwise p is joined under the data, working and
// resource directories, and finally used as is.
func Candidates(p string, loc Locations) []string {
	if filepath.IsAbs(p) {
		return []string{p}
	}
	var out []string
	for _, dir := range []string{loc.DataDir, loc.WorkDir, loc.ResourceDir} {
		if dir != "" {
			out = append(out, filepath.Join(dir, p))
		}
	}
	return append(out, p)
}

// Resolve returns the first candidate that exists. If none does, the first
// candidate is returned so the subsequent read reports a concrete path.
func Resolve(candidates []string) string {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// Buffer is a decoded image in 8-bit non-premultiplied RGBA, row-major with
// no padding.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// Load reads and decodes the image at path. The format is detected from the
// content; EXIF orientation is applied.
func Load(path string) (*Buffer, error) {
	data, err := readLimited(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	return Decode(data)
}

// Decode decodes raw file bytes into a Buffer.
func Decode(data []byte) (*Buffer, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return &Buffer{Width: b.Dx(), Height: b.Dy(), Pix: nrgba.Pix}, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, errors.New("is a directory")
	}
	if fi.Size() > maxImageSize {
		return nil, fmt.Errorf("file is %d bytes, limit is %d", fi.Size(), maxImageSize)
	}
	return io.ReadAll(io.LimitReader(f, maxImageSize+1))
}

// Image returns the buffer as an image.NRGBA sharing the same pixels.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: 4 * b.Width,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// PNG encodes the buffer for the clipboard.
func (b *Buffer) PNG() ([]byte, error) {
	var out bytes.Buffer
	if err := imaging.Encode(&out, b.Image(), imaging.PNG); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DirSource supplies the application directories. appdirs.Dirs satisfies it.
type DirSource interface {
	Data() (string, error)
	Resource() (string, error)
}

// Runner executes a function on the main thread and waits for it.
// mainthread.Loop satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func() error) error
}

// Bridge copies image files to the clipboard.
type Bridge struct {
	backend clip.Backend
	runner  Runner
	dirs    DirSource
}

// New returns a Bridge writing through backend on runner's thread.
func New(backend clip.Backend, runner Runner, dirs DirSource) *Bridge {
	return &Bridge{backend: backend, runner: runner, dirs: dirs}
}

// Copy makes the image named by input the clipboard content. It blocks until
// the main thread has performed the write, so it must not be called from the
// main thread itself.
func (b *Bridge) Copy(ctx context.Context, input string) error {
	p, err := Normalize(input)
	if err != nil {
		return err
	}

	candidates := Candidates(p, b.locations())
	path := Resolve(candidates)
	slog.Debug("clipboard image resolved", "input", input, "path", path, "candidates", len(candidates))

	buf, err := Load(path)
	if err != nil {
		return err
	}
	data, err := buf.PNG()
	if err != nil {
		return fmt.Errorf("%w: encode png: %w", clip.ErrWrite, err)
	}

	if err := b.runner.Do(ctx, func() error { return b.backend.WritePNG(data) }); err != nil {
		return err
	}
	slog.Info("image copied to clipboard",
		"path", path,
		"width", buf.Width,
		"height", buf.Height,
		"backend", b.backend.Name(),
	)
	return nil
}

func (b *Bridge) locations() Locations {
	var loc Locations
	if b.dirs != nil {
		if d, err := b.dirs.Data(); err == nil {
			loc.DataDir = d
		} else {
			slog.Debug("app data dir unavailable", "err", err)
		}
		if d, err := b.dirs.Resource(); err == nil {
			loc.ResourceDir = d
		} else {
			slog.Debug("resource dir unavailable", "err", err)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		loc.WorkDir = wd
	}
	return loc
}
