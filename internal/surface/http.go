package surface

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"go.klb.dev/tether/internal/hub"
)

// sseKeepAlive is how often an idle event stream gets a comment line.
const sseKeepAlive = 15 * time.Second

type dataDirResponse struct {
	Path string `json:"path"`
}

type copyImageRequest struct {
	Path string `json:"path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewGateway returns the HTTP/JSON mux for the UI:
//
//	GET  /v1/backend-port     → {"port": N}
//	GET  /v1/app-data-dir     → {"path": "..."}
//	POST /v1/clipboard/image  ← {"path": "..."}  → 204
//	GET  /v1/events           → text/event-stream of backend-port events
func NewGateway(s *Surface) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()
	m := &gwruntime.JSONPb{}

	routes := []struct {
		method, path string
		h            gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/backend-port", func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
			writeJSON(w, m, http.StatusOK, hub.PortEvent{Port: s.BackendPort()})
		}},
		{http.MethodGet, "/v1/app-data-dir", func(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
			writeJSON(w, m, http.StatusOK, dataDirResponse{Path: s.AppDataDir()})
		}},
		{http.MethodPost, "/v1/clipboard/image", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			var req copyImageRequest
			if err := m.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, m, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
				return
			}
			if err := s.CopyImage(r.Context(), req.Path); err != nil {
				writeJSON(w, m, gwruntime.HTTPStatusFromCode(errorCode(err)), errorResponse{Error: err.Error()})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}},
		{http.MethodGet, "/v1/events", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			serveEvents(w, r, s, m)
		}},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, fmt.Errorf("route %s %s: %w", rt.method, rt.path, err)
		}
	}
	return mux, nil
}

func writeJSON(w http.ResponseWriter, m gwruntime.Marshaler, code int, v any) {
	b, err := m.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", m.ContentType(v))
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// serveEvents streams backend-port notifications as server-sent events.
func serveEvents(w http.ResponseWriter, r *http.Request, s *Surface, m gwruntime.Marshaler) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, m, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	id := "http/" + r.RemoteAddr
	sub := s.Subscribe(id)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	slog.Debug("event stream opened", "listener", id)
	tick := time.NewTicker(sseKeepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			fl.Flush()
		case ev := <-sub.C():
			b, err := m.Marshal(ev)
			if err != nil {
				slog.Error("event encode failed", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", hub.EventBackendPort, b); err != nil {
				return
			}
			fl.Flush()
		}
	}
}
