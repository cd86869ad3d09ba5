package surface

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
)

// Server serves the surface over gRPC and HTTP/JSON.
type Server struct {
	grpc *grpc.Server
	http *http.Server

	mu        sync.Mutex
	listeners []net.Listener
}

// NewServer builds the gRPC service and HTTP gateway for s.
func NewServer(s *Surface, opts ...grpc.ServerOption) (*Server, error) {
	gs := grpc.NewServer(opts...)
	NewService(s).Register(gs)

	mux, err := NewGateway(s)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	return &Server{
		grpc: gs,
		http: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Serve multiplexes gRPC and HTTP/1.1 on ln until ln is closed or Stop is
// called. A closed listener is not an error.
func (srv *Server) Serve(ln net.Listener) error {
	srv.track(ln)
	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	go func() { _ = srv.grpc.Serve(grpcL) }()
	go func() { _ = srv.http.Serve(httpL) }()

	return quiet(m.Serve())
}

// ServeGRPC serves only gRPC on ln, used for the local IPC socket.
func (srv *Server) ServeGRPC(ln net.Listener) error {
	srv.track(ln)
	return quiet(srv.grpc.Serve(ln))
}

// Stop closes all listeners and connections, including open watch streams.
func (srv *Server) Stop() {
	srv.mu.Lock()
	for _, ln := range srv.listeners {
		_ = ln.Close()
	}
	srv.listeners = nil
	srv.mu.Unlock()

	srv.grpc.Stop()
	_ = srv.http.Close()
}

func (srv *Server) track(ln net.Listener) {
	srv.mu.Lock()
	srv.listeners = append(srv.listeners, ln)
	srv.mu.Unlock()
}

func quiet(err error) error {
	switch {
	case err == nil,
		errors.Is(err, net.ErrClosed),
		errors.Is(err, grpc.ErrServerStopped),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, cmux.ErrListenerClosed):
		return nil
	}
	return err
}
