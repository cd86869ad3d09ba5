package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/tether/internal/hub"
	"go.klb.dev/tether/internal/ipc"
	"go.klb.dev/tether/internal/portreg"
	"go.klb.dev/tether/internal/surface"
)

type stubDirs struct{ dir string }

func (d stubDirs) Data() (string, error) {
	if d.dir == "" {
		return "", errors.New("no data dir")
	}
	return d.dir, nil
}

type stubCopier struct{ got []string }

func (c *stubCopier) Copy(_ context.Context, path string) error {
	c.got = append(c.got, path)
	if path == "missing.png" {
		return errors.New("read missing.png: no such file")
	}
	return nil
}

// startHost serves a surface on a temporary IPC socket and returns the
// socket path.
func startHost(t *testing.T, ports *portreg.Registry, dir string, copier *stubCopier) string {
	t.Helper()
	tmp, err := os.MkdirTemp("", "tth")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmp) })
	path := filepath.Join(tmp, "h.sock")

	srv, err := surface.NewServer(surface.New(ports, stubDirs{dir: dir}, copier, hub.New()))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := ipc.Listen(path)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.ServeGRPC(ln) }()
	t.Cleanup(srv.Stop)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "tether "+Version {
		t.Fatalf("version output = %q", out)
	}
}

func TestPortCommand(t *testing.T) {
	ports := portreg.New()
	sock := startHost(t, ports, "/data", &stubCopier{})

	out, err := execute(t, "port", "--socket", sock)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Fatalf("port before handshake = %q", out)
	}

	ports.Set(54321)
	out, err = execute(t, "port", "--socket", sock)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "54321" {
		t.Fatalf("port = %q", out)
	}

	out, err = execute(t, "port", "--wait", "--socket", sock)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "54321" {
		t.Fatalf("port --wait = %q", out)
	}
}

func TestDataDirCommand(t *testing.T) {
	sock := startHost(t, portreg.New(), "/home/u/.local/share/dev.klb.tether", &stubCopier{})
	out, err := execute(t, "datadir", "--socket", sock)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "/home/u/.local/share/dev.klb.tether" {
		t.Fatalf("datadir = %q", out)
	}

	sock = startHost(t, portreg.New(), "", &stubCopier{})
	if _, err := execute(t, "datadir", "--socket", sock); err == nil {
		t.Fatal("datadir should fail when the host has no data dir")
	}
}

func TestCopyImageCommand(t *testing.T) {
	cp := &stubCopier{}
	sock := startHost(t, portreg.New(), "/data", cp)

	if _, err := execute(t, "copy-image", "--socket", sock, "storage/a.png"); err != nil {
		t.Fatal(err)
	}
	if len(cp.got) != 1 || cp.got[0] != "storage/a.png" {
		t.Fatalf("host saw %v", cp.got)
	}

	_, err := execute(t, "copy-image", "--socket", sock, "missing.png")
	if err == nil || !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("err = %v, want host message", err)
	}
}

func TestNoHost(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "none.sock")
	_, err := execute(t, "port", "--socket", sock)
	if !errors.Is(err, surface.ErrNoHost) {
		t.Fatalf("err = %v, want ErrNoHost", err)
	}
}

func TestBindViperEnv(t *testing.T) {
	t.Setenv("TETHER_SIDECAR_DIR", "/opt/app/bin")
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("sidecar-dir", "", "")
	addConfigFlag(cmd)
	if err := bindViper(cmd, v); err != nil {
		t.Fatal(err)
	}
	if got := v.GetString("sidecar-dir"); got != "/opt/app/bin" {
		t.Fatalf("sidecar-dir = %q", got)
	}
}

func TestBindViperConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "tether.toml")
	if err := os.WriteFile(cfg, []byte("identifier = \"com.example.app\"\nsidecar-mode = \"debug\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	cmd := newRunCmd()
	if err := cmd.Flags().Set("config", cfg); err != nil {
		t.Fatal(err)
	}
	if err := bindViper(cmd, v); err != nil {
		t.Fatal(err)
	}
	if got := v.GetString("identifier"); got != "com.example.app" {
		t.Fatalf("identifier = %q", got)
	}
	if got := v.GetString("sidecar-mode"); got != "debug" {
		t.Fatalf("sidecar-mode = %q", got)
	}
	if got := v.GetString("sidecar-debug"); got != "http2debug=2" {
		t.Fatalf("sidecar-debug default = %q", got)
	}
}
