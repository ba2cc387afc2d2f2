package grpcpeer

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/ahrav/go-peerscore/internal/transport/wire"
)

// Server hosts a RecognitionServer.
type Server struct {
	grpc   *grpc.Server
	logger *slog.Logger
}

// NewServer registers handler on a gRPC server that speaks the CBOR codec.
func NewServer(handler RecognitionServer, codec *wire.Codec, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(codec)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterRecognitionServer(s, handler)
	return &Server{grpc: s, logger: logger}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("recognition server listening", "address", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve %s: %w", lis.Addr(), err)
	}
	return nil
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			s.logger.Error("recognition server stopped", "error", err)
		}
	}()
	return lis.Addr(), nil
}

// Stop drains in-flight calls and closes the listener. Safe to call twice.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
	s.logger.Info("recognition server stopped")
}
