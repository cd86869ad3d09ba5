// tether: desktop host that supervises a backend sidecar and bridges it to
// the UI.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"go.klb.dev/tether/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

// The clipboard must be written from the thread the process started on, so
// the main goroutine stays on it for the life of the process.
func init() { runtime.LockOSThread() }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tether",
		Short: "Desktop host for a bundled backend sidecar",
		Long: `tether launches the bundled backend executable, learns the port it bound
from its "SERVER_PORT=<n>" startup line, and serves that port, the app data
directory, and image-to-clipboard copies to the UI.

Run "tether run" to start the host. "tether port", "tether datadir" and
"tether copy-image" talk to a running host over its local IPC socket.

Config file search order (first found wins):
  /etc/tether/tether.toml
  $HOME/.config/tether/tether.toml
  path supplied via --config

All flags can be set via TETHER_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
		Version:      Version,
	}

	root.AddCommand(
		newRunCmd(),
		newPortCmd(),
		newDataDirCmd(),
		newCopyImageCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tether %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(os.Stderr, format, level)
}
