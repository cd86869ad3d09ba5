// Package watcher consumes the sidecar's output stream and extracts the
// backend port from its startup handshake line.
package watcher

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"go.klb.dev/tether/internal/hub"
	"go.klb.dev/tether/internal/sidecar"
)

// Marker is the handshake prefix the sidecar prints once it has bound its port.
const Marker = "SERVER_PORT="

// PortStore is written once per parsed handshake line.
type PortStore interface {
	Set(port uint16)
}

// Emitter broadcasts handshake events to the UI.
type Emitter interface {
	Emit(hub.PortEvent)
}

// Handle is the supervisor's view of the child process.
type Handle interface {
	Release() bool
}

// Watcher drives the sidecar event loop.
type Watcher struct {
	ports   PortStore
	emitter Emitter
	handle  Handle
	log     *slog.Logger
}

// New returns a Watcher. handle may be nil.
func New(ports PortStore, emitter Emitter, handle Handle) *Watcher {
	return &Watcher{
		ports:   ports,
		emitter: emitter,
		handle:  handle,
		log:     slog.Default().With("component", "sidecar"),
	}
}

// Run consumes events until the stream closes or ctx is done.
func (w *Watcher) Run(ctx context.Context, events <-chan sidecar.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				w.log.Debug("sidecar event stream closed")
				return
			}
			w.dispatch(ev)
		}
	}
}

func (w *Watcher) dispatch(ev sidecar.Event) {
	switch ev.Kind {
	case sidecar.EventStdout:
		w.HandleLine(ev.Line)

	case sidecar.EventStderr:
		w.log.Warn("sidecar output", "stream", "stderr", "line", decode(ev.Line))

	case sidecar.EventError:
		w.log.Error("sidecar stream error", "err", ev.Err)

	case sidecar.EventTerminated:
		w.log.Info("sidecar terminated", "code", ev.Status.Code, "status", ev.Status.Desc)
		if w.handle != nil {
			w.handle.Release()
		}
	}
}

// HandleLine processes one stdout line. It reports whether the line was a
// valid handshake.
func (w *Watcher) HandleLine(raw []byte) bool {
	line := decode(raw)
	w.log.Info("sidecar output", "stream", "stdout", "line", line)

	port, ok := ParsePort(line)
	if !ok {
		return false
	}
	w.log.Info("detected backend port", "port", port)
	w.ports.Set(port)
	w.emitter.Emit(hub.PortEvent{Port: port})
	return true
}

// ParsePort extracts the port from a handshake line. The text after the last
// '=' is trimmed and parsed as an unsigned 16-bit integer. Port 0 is not a
// valid handshake.
func ParsePort(line string) (uint16, bool) {
	if !strings.Contains(line, Marker) {
		return 0, false
	}
	s := line[strings.LastIndexByte(line, '=')+1:]
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint16(n), true
}

// decode converts raw output to text, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
