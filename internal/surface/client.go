package surface

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a running host over gRPC.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// BackendPort returns the host's current backend port (0 = not yet known).
func (c *Client) BackendPort(ctx context.Context, opts ...grpc.CallOption) (uint16, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.cc.Invoke(ctx, methodGetBackendPort, &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return uint16(out.GetValue()), nil
}

// AppDataDir returns the host's app data directory, or "" if the host
// could not determine it.
func (c *Client) AppDataDir(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodGetAppDataDir, &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// CopyImage asks the host to copy the image at path to the clipboard.
func (c *Client) CopyImage(ctx context.Context, path string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodCopyImageToClipboard, wrapperspb.String(path), &emptypb.Empty{}, opts...)
}

// WaitForPort blocks until the host reports a nonzero backend port or ctx
// is done.
func (c *Client) WaitForPort(ctx context.Context, opts ...grpc.CallOption) (uint16, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &HostServiceDesc.Streams[0], methodWatchBackendPort, opts...)
	if err != nil {
		return 0, fmt.Errorf("watch: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return 0, fmt.Errorf("watch: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return 0, fmt.Errorf("watch: %w", err)
	}
	for {
		ev := new(wrapperspb.UInt32Value)
		if err := stream.RecvMsg(ev); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("watch: %w", err)
		}
		if p := ev.GetValue(); p != 0 {
			return uint16(p), nil
		}
	}
}

// ErrNoHost is returned by callers when no running host can be reached.
var ErrNoHost = errors.New("no running tether host")
