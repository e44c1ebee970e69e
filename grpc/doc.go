// Package grpc serves and calls function invocations over gRPC.
//
// The service is otxfn.v1.Function with a single unary Invoke method whose
// request and response are google.protobuf.BytesValue, so no generated code
// is needed on either side.
//
//	s := grpc.NewServer(grpc.StatsHandler(otxfngrpc.ServerHandler()))
//	otxfngrpc.RegisterInvokeServer(s, adapter.Handle, otxfn.MustExportHandle())
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithTransportCredentials(insecure.NewCredentials()),
//	    grpc.WithStatsHandler(otxfngrpc.ClientHandler()),
//	)
//	out, err := otxfngrpc.Invoke(ctx, conn, payload)
//
// Rejected payloads fail with codes.InvalidArgument, every other invocation
// failure with codes.Internal.
package grpc
