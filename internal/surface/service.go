package surface

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strconv"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/tether/internal/clip"
	"go.klb.dev/tether/internal/clipimage"
	"go.klb.dev/tether/internal/mainthread"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "tether.v1.HostService"

const (
	methodGetBackendPort       = "/" + ServiceName + "/GetBackendPort"
	methodGetAppDataDir        = "/" + ServiceName + "/GetAppDataDir"
	methodCopyImageToClipboard = "/" + ServiceName + "/CopyImageToClipboard"
	methodWatchBackendPort     = "/" + ServiceName + "/WatchBackendPort"
)

// HostServer is the server API for the host service. Messages are protobuf
// well-known types, so no generated code is needed.
type HostServer interface {
	GetBackendPort(context.Context, *emptypb.Empty) (*wrapperspb.UInt32Value, error)
	GetAppDataDir(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	CopyImageToClipboard(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	WatchBackendPort(*emptypb.Empty, grpc.ServerStream) error
}

// HostServiceDesc describes the host service for grpc.Server.RegisterService.
var HostServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBackendPort", Handler: getBackendPortHandler},
		{MethodName: "GetAppDataDir", Handler: getAppDataDirHandler},
		{MethodName: "CopyImageToClipboard", Handler: copyImageHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchBackendPort", Handler: watchBackendPortHandler, ServerStreams: true},
	},
}

// Service implements HostServer on top of a Surface.
type Service struct {
	s       *Surface
	watches atomic.Int64
}

// NewService returns a Service backed by s.
func NewService(s *Surface) *Service { return &Service{s: s} }

// Register adds the service to srv.
func (svc *Service) Register(srv grpc.ServiceRegistrar) {
	srv.RegisterService(&HostServiceDesc, svc)
}

func (svc *Service) GetBackendPort(_ context.Context, _ *emptypb.Empty) (*wrapperspb.UInt32Value, error) {
	return wrapperspb.UInt32(uint32(svc.s.BackendPort())), nil
}

func (svc *Service) GetAppDataDir(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(svc.s.AppDataDir()), nil
}

func (svc *Service) CopyImageToClipboard(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := svc.s.CopyImage(ctx, req.GetValue()); err != nil {
		return nil, status.Error(errorCode(err), err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (svc *Service) WatchBackendPort(_ *emptypb.Empty, stream grpc.ServerStream) error {
	id := "grpc/" + addrFromCtx(stream.Context()) + "/" + strconv.FormatInt(svc.watches.Add(1), 10)
	sub := svc.s.Subscribe(id)
	defer sub.Close()

	slog.Debug("port watch started", "listener", id)
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case ev := <-sub.C():
			if err := stream.SendMsg(wrapperspb.UInt32(uint32(ev.Port))); err != nil {
				return err
			}
		}
	}
}

// errorCode maps clipboard bridge failures to gRPC codes.
func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, clipimage.ErrEmptyPath), errors.Is(err, clipimage.ErrDecode):
		return codes.InvalidArgument
	case errors.Is(err, fs.ErrNotExist):
		return codes.NotFound
	case errors.Is(err, clipimage.ErrRead):
		return codes.FailedPrecondition
	case errors.Is(err, clip.ErrInit), errors.Is(err, mainthread.ErrDispatch):
		return codes.Unavailable
	case errors.Is(err, mainthread.ErrAborted):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func addrFromCtx(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// ── handlers ───────────────────────────────────────────────────────────────

func getBackendPortHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServer).GetBackendPort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetBackendPort}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HostServer).GetBackendPort(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getAppDataDirHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServer).GetAppDataDir(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetAppDataDir}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HostServer).GetAppDataDir(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func copyImageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServer).CopyImageToClipboard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCopyImageToClipboard}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HostServer).CopyImageToClipboard(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchBackendPortHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HostServer).WatchBackendPort(in, stream)
}
