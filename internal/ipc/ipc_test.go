package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

// shortSocket returns a socket path short enough for sun_path limits.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tth")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestSocketPathOverride(t *testing.T) {
	t.Setenv(EnvSocket, "/run/custom.sock")
	if got := SocketPath(); got != "/run/custom.sock" {
		t.Fatalf("SocketPath() = %q", got)
	}
}

func TestSocketPathRuntimeDir(t *testing.T) {
	t.Setenv(EnvSocket, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := SocketPath(); got != filepath.Join("/run/user/1000", "tether.sock") {
		t.Fatalf("SocketPath() = %q", got)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	path := shortSocket(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	if !IsRunning(path) {
		t.Fatal("IsRunning() = false with a live listener")
	}
}

func TestListenRefusesLiveSocket(t *testing.T) {
	path := shortSocket(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	if _, err := Listen(path); err == nil {
		t.Fatal("Listen over a live socket should fail")
	}
}

func TestIsRunningNoSocket(t *testing.T) {
	if IsRunning(shortSocket(t)) {
		t.Fatal("IsRunning() = true with no socket")
	}
}
