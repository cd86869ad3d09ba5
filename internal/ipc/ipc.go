// Package ipc provides the local Unix-socket channel that CLI sub-commands
// (port/datadir/copy-image) use to reach a running tether host.
//
// The channel is plain gRPC served over a Unix domain socket, using the same
// host service as the loopback listener. AF_UNIX is available on Windows 10
// and later, so one implementation covers every platform.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// EnvSocket overrides the socket path.
const EnvSocket = "TETHER_SOCKET"

const socketName = "tether.sock"

// SocketPath returns the path of the IPC socket:
//
//   - $TETHER_SOCKET if set
//   - $XDG_RUNTIME_DIR/tether.sock on Linux desktops
//   - $TMPDIR/tether.sock otherwise
func SocketPath() string {
	if s := os.Getenv(EnvSocket); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// Listen creates a listener on path, removing a stale socket left by a
// crashed run. It refuses to replace a socket another host is serving on.
func Listen(path string) (net.Listener, error) {
	if probe(path) {
		return nil, fmt.Errorf("ipc: %s: another host is already running", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen: %w", err)
	}
	return ln, nil
}

// IsRunning reports whether a host appears to be listening on path. It does
// a cheap dial-and-close; no data is exchanged.
func IsRunning(path string) bool { return probe(path) }

func probe(path string) bool {
	c, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Dial returns a gRPC client connection to the host on path. The connection
// is lazy; the first RPC fails if nothing is listening.
func Dial(path string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}),
	}, opts...)
	cc, err := grpc.NewClient("passthrough:///tether", opts...)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial: %w", err)
	}
	return cc, nil
}
