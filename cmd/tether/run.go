package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/tether/internal/appdirs"
	"go.klb.dev/tether/internal/clip"
	"go.klb.dev/tether/internal/clipimage"
	"go.klb.dev/tether/internal/hub"
	"go.klb.dev/tether/internal/ipc"
	"go.klb.dev/tether/internal/mainthread"
	"go.klb.dev/tether/internal/portreg"
	"go.klb.dev/tether/internal/sidecar"
	"go.klb.dev/tether/internal/surface"
	"go.klb.dev/tether/internal/watcher"
)

const defaultIdentifier = "dev.klb.tether"

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the host: launch the sidecar and serve the command surface",
		Long: `Launches the bundled backend sidecar, watches its output for the
"SERVER_PORT=<n>" handshake, and serves the command surface (backend port,
app data dir, copy image to clipboard) over gRPC and HTTP/JSON on --listen
and over gRPC on the local IPC socket.

The sidecar is looked up as <name>-<target-triple> then <name>, in
--sidecar-dir, next to this executable, and on macOS in ../Resources.
It is killed when the host exits.

Precedence (lowest → highest): defaults → config file → TETHER_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runHost(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("identifier", defaultIdentifier, "application identifier used for the data directory")
	f.String("data-dir", "", "override the app data directory")
	f.String("resource-dir", "", "override the bundled resource directory")
	f.String("sidecar", "server", "base name of the sidecar executable")
	f.String("sidecar-dir", "", "directory searched first for the sidecar")
	f.String("sidecar-path", "", "exact sidecar path (skips lookup)")
	f.StringSlice("sidecar-arg", nil, "argument passed to the sidecar (repeatable)")
	f.String("sidecar-debug", "http2debug=2", "GODEBUG value for the sidecar")
	f.String("sidecar-mode", "release", "GIN_MODE value for the sidecar")
	f.String("listen", "127.0.0.1:0", "command surface listen address (gRPC + HTTP)")
	f.Bool("no-ipc", false, "do not serve the local IPC socket")
	addSocketFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// runHost must be called on the main goroutine: it runs the main-thread loop
// until shutdown and everything else on worker goroutines.
func runHost(parent context.Context, v *viper.Viper) error {
	setupLogging(v)
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dirs := appdirs.Dirs{
		Identifier:       v.GetString("identifier"),
		DataOverride:     v.GetString("data-dir"),
		ResourceOverride: v.GetString("resource-dir"),
	}
	sup := sidecar.New(sidecar.Config{
		Name:  v.GetString("sidecar"),
		Dir:   v.GetString("sidecar-dir"),
		Path:  v.GetString("sidecar-path"),
		Args:  v.GetStringSlice("sidecar-arg"),
		Debug: v.GetString("sidecar-debug"),
		Mode:  v.GetString("sidecar-mode"),
	})

	slog.Info("tether host starting",
		"version", Version,
		"identifier", dirs.Identifier,
		"platform", sidecar.Platform(),
		"target", sidecar.TargetTriple(),
	)

	ln, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("listen %s: %w", v.GetString("listen"), err)
	}

	loop := mainthread.New()
	ports := portreg.New()
	events := hub.New()
	backend := clip.New()
	surf := surface.New(ports, dirs, clipimage.New(backend, loop, dirs), events)
	srv, err := surface.NewServer(surf)
	if err != nil {
		_ = ln.Close()
		return err
	}

	stream, err := sup.Start(ctx)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("spawn sidecar: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watcher.New(ports, events, sup).Run(gctx, stream)
		return nil
	})

	slog.Info("command surface listening", "addr", ln.Addr().String(), "clipboard", backend.Name())
	g.Go(func() error { return srv.Serve(ln) })

	if !v.GetBool("no-ipc") {
		path := v.GetString("socket")
		if ipcLn, err := ipc.Listen(path); err != nil {
			slog.Warn("IPC socket unavailable", "err", err)
		} else {
			slog.Info("IPC socket listening", "path", path)
			g.Go(func() error { return srv.ServeGRPC(ipcLn) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		if sup.Running() {
			if err := sup.Kill(); err != nil {
				slog.Warn("sidecar kill failed", "err", err)
			} else {
				slog.Info("sidecar killed")
			}
		}
		return nil
	})

	loop.Run(gctx)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("tether host stopped")
	return err
}
