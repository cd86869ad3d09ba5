package watcher

import (
	"context"
	"testing"
	"time"

	"go.klb.dev/tether/internal/hub"
	"go.klb.dev/tether/internal/portreg"
	"go.klb.dev/tether/internal/sidecar"
)

type recordingEmitter struct {
	reg    *portreg.Registry
	events []hub.PortEvent
	seen   []uint16 // registry value observed at emit time
}

func (e *recordingEmitter) Emit(ev hub.PortEvent) {
	e.events = append(e.events, ev)
	e.seen = append(e.seen, e.reg.Get())
}

type countingHandle struct{ held, calls int }

func (h *countingHandle) Release() bool {
	h.calls++
	if h.held == 0 {
		return false
	}
	h.held = 0
	return true
}

func newTestWatcher() (*Watcher, *portreg.Registry, *recordingEmitter, *countingHandle) {
	reg := portreg.New()
	em := &recordingEmitter{reg: reg}
	h := &countingHandle{held: 1}
	return New(reg, em, h), reg, em, h
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		line string
		want uint16
		ok   bool
	}{
		{"SERVER_PORT=54321", 54321, true},
		{"  SERVER_PORT= 8080  ", 8080, true},
		{"[GIN] listening SERVER_PORT=3000\r", 3000, true},
		{"a=b SERVER_PORT=65535", 65535, true},
		{"SERVER_PORT=notanumber", 0, false},
		{"SERVER_PORT=", 0, false},
		{"SERVER_PORT=65536", 0, false},
		{"SERVER_PORT=-1", 0, false},
		{"SERVER_PORT=0", 0, false},
		{"PORT=8080", 0, false},
		{"server_port=8080", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePort(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePort(%q) = %d, %v; want %d, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHandshakeSetsRegistryThenEmits(t *testing.T) {
	w, reg, em, _ := newTestWatcher()

	if !w.HandleLine([]byte("SERVER_PORT=54321")) {
		t.Fatal("HandleLine returned false for a valid handshake")
	}
	if got := reg.Get(); got != 54321 {
		t.Fatalf("registry = %d, want 54321", got)
	}
	if len(em.events) != 1 || em.events[0].Port != 54321 {
		t.Fatalf("events = %+v, want exactly one {54321}", em.events)
	}
	if em.seen[0] != 54321 {
		t.Fatalf("registry at emit time = %d, want 54321", em.seen[0])
	}
}

func TestNonMatchingLinesAreIgnored(t *testing.T) {
	w, reg, em, _ := newTestWatcher()

	for _, line := range [][]byte{
		[]byte("starting server"),
		[]byte("SERVER_PORT=notanumber"),
		{0xff, 0xfe, 'x'},
		nil,
	} {
		if w.HandleLine(line) {
			t.Errorf("HandleLine(%q) = true", line)
		}
	}
	if got := reg.Get(); got != 0 {
		t.Fatalf("registry = %d, want 0", got)
	}
	if len(em.events) != 0 {
		t.Fatalf("events = %+v, want none", em.events)
	}
}

func TestInvalidUTF8AroundMarker(t *testing.T) {
	w, reg, _, _ := newTestWatcher()
	line := append([]byte{0xc3, 0x28, ' '}, []byte("SERVER_PORT=4242")...)
	if !w.HandleLine(line) {
		t.Fatal("handshake with invalid prefix bytes not detected")
	}
	if reg.Get() != 4242 {
		t.Fatalf("registry = %d, want 4242", reg.Get())
	}
}

func TestRepeatedHandshakeOverwrites(t *testing.T) {
	w, reg, em, _ := newTestWatcher()
	w.HandleLine([]byte("SERVER_PORT=1000"))
	w.HandleLine([]byte("SERVER_PORT=2000"))
	if reg.Get() != 2000 {
		t.Fatalf("registry = %d, want 2000", reg.Get())
	}
	if len(em.events) != 2 {
		t.Fatalf("got %d events, want 2", len(em.events))
	}
}

func TestRunConsumesStream(t *testing.T) {
	w, reg, em, h := newTestWatcher()

	events := make(chan sidecar.Event, 8)
	events <- sidecar.Event{Kind: sidecar.EventStdout, Line: []byte("booting")}
	events <- sidecar.Event{Kind: sidecar.EventStderr, Line: []byte("SERVER_PORT=9999")}
	events <- sidecar.Event{Kind: sidecar.EventError, Err: context.DeadlineExceeded}
	events <- sidecar.Event{Kind: sidecar.EventStdout, Line: []byte("SERVER_PORT=54321")}
	events <- sidecar.Event{Kind: sidecar.EventTerminated, Status: sidecar.ExitStatus{Code: 0, Desc: "exit status 0"}}
	events <- sidecar.Event{Kind: sidecar.EventTerminated, Status: sidecar.ExitStatus{Code: 0, Desc: "exit status 0"}}
	close(events)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}

	if reg.Get() != 54321 {
		t.Errorf("registry = %d, want 54321 (stderr must not be parsed)", reg.Get())
	}
	if len(em.events) != 1 {
		t.Errorf("got %d events, want 1", len(em.events))
	}
	if h.calls != 2 || h.held != 0 {
		t.Errorf("handle calls = %d held = %d; want 2 calls and released", h.calls, h.held)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	w, _, _, _ := newTestWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx, make(chan sidecar.Event))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancelled context")
	}
}
