package hub

import "log/slog"

// Subscription is a channel-backed Listener.
type Subscription struct {
	id string
	h  *Hub
	ch chan PortEvent
}

// Subscribe registers a new channel listener with room for buf pending events.
// Call Close when done.
func (h *Hub) Subscribe(id string, buf int) *Subscription {
	if buf < 1 {
		buf = 1
	}
	s := &Subscription{id: id, h: h, ch: make(chan PortEvent, buf)}
	h.Register(s)
	return s
}

func (s *Subscription) ID() string { return s.id }

// Send implements Listener.
func (s *Subscription) Send(ev PortEvent) {
	select {
	case s.ch <- ev:
	default:
		slog.Warn("listener channel full, dropping", "listener", s.id, "port", ev.Port)
	}
}

// C returns the channel events are delivered on.
func (s *Subscription) C() <-chan PortEvent { return s.ch }

// Close unregisters the subscription. The channel is left open.
func (s *Subscription) Close() { s.h.Unregister(s) }
