package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDataDirCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "datadir",
		Short:   "Print the host's app data directory",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDataDir(cmd, v) },
	}
	addSocketFlag(cmd)
	addConfigFlag(cmd)
	return cmd
}

func runDataDir(cmd *cobra.Command, v *viper.Viper) error {
	client, conn, err := dialHost(v)
	if err != nil {
		return err
	}
	defer conn.Close()

	dir, err := client.AppDataDir(cmd.Context())
	if err != nil {
		return fmt.Errorf("app data dir: %w", err)
	}
	if dir == "" {
		return errors.New("host could not determine its app data directory")
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
