// Package hub fans backend notifications out to UI listeners.
// Listeners register, receive events via a channel, and unregister when done.
// Delivery never blocks the publisher: a listener whose buffer is full misses
// the event and must fall back to polling the port registry.
package hub

import (
	"log/slog"
	"sync"
)

// EventBackendPort is the name of the notification broadcast when the
// sidecar reports its listening port.
const EventBackendPort = "backend-port"

// PortEvent is the payload of a backend-port notification.
type PortEvent struct {
	Port uint16 `json:"port"`
}

// Listener is anything that can receive port events from the hub.
type Listener interface {
	ID() string
	// Send delivers an event. Must be non-blocking.
	Send(PortEvent)
}

// Hub routes port events to every registered listener.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	sent      uint64
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{listeners: make(map[string]Listener)}
}

// Register adds a listener. A listener registered under an existing ID
// replaces the previous one.
func (h *Hub) Register(l Listener) {
	h.mu.Lock()
	h.listeners[l.ID()] = l
	total := len(h.listeners)
	h.mu.Unlock()

	slog.Debug("listener registered", "listener", l.ID(), "total", total)
}

// Unregister removes a listener.
func (h *Hub) Unregister(l Listener) {
	h.mu.Lock()
	delete(h.listeners, l.ID())
	total := len(h.listeners)
	h.mu.Unlock()

	slog.Debug("listener unregistered", "listener", l.ID(), "total", total)
}

// Emit broadcasts ev to all listeners.
func (h *Hub) Emit(ev PortEvent) {
	h.mu.Lock()
	h.sent++
	targets := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.Unlock()

	slog.Info("broadcasting event", "event", EventBackendPort, "port", ev.Port, "listeners", len(targets))
	for _, l := range targets {
		l.Send(ev)
	}
}

// Sent returns the number of events broadcast so far.
func (h *Hub) Sent() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent
}

// Len returns the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
