package grpc

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const instrumentationName = "github.com/arloliu/otxfn/grpc"

// Service and method names of the invocation service.
const (
	ServiceName  = "otxfn.v1.Function"
	InvokeMethod = "/" + ServiceName + "/Invoke"
)

// MetadataInvocationID is the response header carrying the invocation ID.
const MetadataInvocationID = "otxfn-invocation-id"

// FunctionServer is the server API of the invocation service. Payloads and
// results travel as google.protobuf.BytesValue; an empty result means the
// handler produced no value.
type FunctionServer interface {
	Invoke(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

type serverConfig struct {
	tp       trace.TracerProvider
	boundary []otxfn.BoundaryOption
}

// ServerOption configures the invocation service.
type ServerOption func(*serverConfig)

// WithTracerProvider sets the provider of the invocation span tracer.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(c *serverConfig) {
		c.tp = tp
	}
}

// WithBoundaryOptions passes options to the tracing boundary of every call.
func WithBoundaryOptions(opts ...otxfn.BoundaryOption) ServerOption {
	return func(c *serverConfig) {
		c.boundary = append(c.boundary, opts...)
	}
}

type functionServer struct {
	entry    otxfn.EntryPoint
	handle   otxfn.ExportHandle
	boundary []otxfn.BoundaryOption
}

// NewFunctionServer returns a FunctionServer running entry through
// [otxfn.RunWithSpan] with handle.
func NewFunctionServer(entry otxfn.EntryPoint, handle otxfn.ExportHandle, opts ...ServerOption) FunctionServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	boundary := []otxfn.BoundaryOption{
		otxfn.WithTrigger("other"),
		otxfn.WithOperation(otxfn.NameRPC(ServiceName, "Invoke")),
	}
	if cfg.tp != nil {
		boundary = append(boundary, otxfn.WithTracer(cfg.tp.Tracer(instrumentationName)))
	}

	return &functionServer{
		entry:    entry,
		handle:   handle,
		boundary: append(boundary, cfg.boundary...),
	}
}

func (s *functionServer) Invoke(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	entry := func(ctx context.Context, payload io.ReadSeeker) ([]byte, error) {
		if err := grpc.SetHeader(ctx, metadata.Pairs(MetadataInvocationID, otxfn.InvocationID(ctx))); err != nil {
			otel.Handle(err)
		}
		return s.entry(ctx, payload)
	}

	out, err := otxfn.RunWithSpan(ctx, s.handle, entry, bytes.NewReader(in.GetValue()), s.boundary...)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Bytes(out), nil
}

// toStatus maps an invocation error to a gRPC status.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case invoke.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FunctionServiceDesc describes the invocation service for manual registration.
var FunctionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FunctionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "otxfn/v1/function.proto",
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	fs, _ := srv.(FunctionServer)
	if interceptor == nil {
		return fs.Invoke(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InvokeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		bv, _ := req.(*wrapperspb.BytesValue)
		return fs.Invoke(ctx, bv)
	}

	return interceptor(ctx, in, info, handler)
}

// RegisterInvokeServer registers the invocation service for entry on s.
//
//	s := grpc.NewServer(grpc.StatsHandler(otxfngrpc.ServerHandler()))
//	otxfngrpc.RegisterInvokeServer(s, adapter.Handle, otxfn.MustExportHandle())
func RegisterInvokeServer(s grpc.ServiceRegistrar, entry otxfn.EntryPoint, handle otxfn.ExportHandle, opts ...ServerOption) {
	s.RegisterService(&FunctionServiceDesc, NewFunctionServer(entry, handle, opts...))
}

// Invoke calls the invocation service over conn and returns the encoded
// result, or nil when the handler produced no value. Failures are gRPC status
// errors: codes.InvalidArgument for rejected payloads, codes.Internal otherwise.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, payload []byte, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, InvokeMethod, wrapperspb.Bytes(payload), out, opts...); err != nil {
		return nil, err
	}
	if len(out.GetValue()) == 0 {
		return nil, nil
	}

	return out.GetValue(), nil
}
