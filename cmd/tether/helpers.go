package main

import (
	"fmt"

	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/tether/internal/ipc"
	"go.klb.dev/tether/internal/surface"
)

// dialHost connects to the running host's IPC socket. The caller closes the
// returned connection.
func dialHost(v *viper.Viper) (*surface.Client, *grpc.ClientConn, error) {
	path := v.GetString("socket")
	if !ipc.IsRunning(path) {
		return nil, nil, fmt.Errorf("%w (socket %s)", surface.ErrNoHost, path)
	}
	conn, err := ipc.Dial(path)
	if err != nil {
		return nil, nil, err
	}
	return surface.NewClient(conn), conn, nil
}
