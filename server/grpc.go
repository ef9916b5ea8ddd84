package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CompileServer is the gRPC server API of the service.
type CompileServer interface {
	Compile(context.Context, *CompileRequest) (*CompileResponse, error)
	Run(context.Context, *RunRequest) (*RunResponse, error)
}

// grpcService adapts Service errors to gRPC status codes.
type grpcService struct {
	svc *Service
}

func (g *grpcService) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	res, err := g.svc.Compile(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(grpcRequestIDKey, res.RequestID))
	return res, nil
}

func (g *grpcService) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	res, err := g.svc.Run(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(grpcRequestIDKey, res.RequestID))
	return res, nil
}

const grpcRequestIDKey = "blockjit-request-id"

func grpcError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func unaryMethod[Req, Res any](name string, call func(CompileServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CompileServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CompileServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var compileServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompileServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Compile", CompileServer.Compile),
		unaryMethod("Run", CompileServer.Run),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blockjit/v1/compile",
}

// RegisterGRPC registers the service on a gRPC server. Messages use the
// "cbor" content subtype.
func RegisterGRPC(r grpc.ServiceRegistrar, svc *Service) {
	r.RegisterService(&compileServiceDesc, &grpcService{svc: svc})
}

// GRPCClient calls the service over gRPC.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient creates a client on cc.
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(Codec{}.Name())}, opts...)
}

// Compile calls CompileService.Compile.
func (c *GRPCClient) Compile(ctx context.Context, req *CompileRequest, opts ...grpc.CallOption) (*CompileResponse, error) {
	out := new(CompileResponse)
	if err := c.cc.Invoke(ctx, CompileProcedure, req, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Run calls CompileService.Run.
func (c *GRPCClient) Run(ctx context.Context, req *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	out := new(RunResponse)
	if err := c.cc.Invoke(ctx, RunProcedure, req, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
