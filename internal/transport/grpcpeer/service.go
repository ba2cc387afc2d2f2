// Package grpcpeer carries recognition requests to peers over gRPC using the
// CBOR wire codec. The service descriptor is declared by hand because the
// payload is CBOR rather than protobuf.
package grpcpeer

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ahrav/go-peerscore/internal/transport/wire"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "peerscore.v1.Recognition"
	// FullMethod is the unary method peers expose.
	FullMethod = "/" + ServiceName + "/Recognize"
)

// RecognitionServer is implemented by the peer-side handler.
type RecognitionServer interface {
	Recognize(ctx context.Context, req *wire.RecognitionRequest) (*wire.RecognitionResponse, error)
}

// ServiceDesc describes the recognition service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognitionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recognize", Handler: recognizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "peerscore/v1/recognition",
}

// RegisterRecognitionServer attaches srv to a gRPC service registrar.
func RegisterRecognitionServer(s grpc.ServiceRegistrar, srv RecognitionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.RecognitionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecognitionServer).Recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecognitionServer).Recognize(ctx, req.(*wire.RecognitionRequest))
	}
	return interceptor(ctx, in, info, handler)
}
