package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPortCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "port",
		Short: "Print the backend port reported by the sidecar",
		Long: `Prints the port the sidecar announced in its SERVER_PORT handshake.
Prints 0 if the handshake has not happened yet, unless --wait is given, in
which case it blocks until the port is known or --timeout elapses.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPort(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("wait", false, "block until the backend port is known")
	f.Duration("timeout", 30*time.Second, "how long --wait blocks (0 = forever)")
	addSocketFlag(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runPort(cmd *cobra.Command, v *viper.Viper) error {
	client, conn, err := dialHost(v)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	var port uint16
	if v.GetBool("wait") {
		if d := v.GetDuration("timeout"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		port, err = client.WaitForPort(ctx)
	} else {
		port, err = client.BackendPort(ctx)
	}
	if err != nil {
		return fmt.Errorf("backend port: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), port)
	return nil
}
