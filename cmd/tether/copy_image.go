package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/status"
)

func newCopyImageCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy-image PATH",
		Short: "Copy an image file to the system clipboard via the host",
		Long: `Asks the running host to decode PATH and place it on the system clipboard.

PATH may be absolute, a file:// URL, or relative; relative paths are tried
against the app data dir, the host's working directory and the resource dir,
in that order.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runCopyImage(cmd, v, args[0]) },
	}
	addSocketFlag(cmd)
	addConfigFlag(cmd)
	return cmd
}

func runCopyImage(cmd *cobra.Command, v *viper.Viper, path string) error {
	client, conn, err := dialHost(v)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := client.CopyImage(cmd.Context(), path); err != nil {
		if st, ok := status.FromError(err); ok {
			return fmt.Errorf("copy image: %s", st.Message())
		}
		return fmt.Errorf("copy image: %w", err)
	}
	return nil
}
