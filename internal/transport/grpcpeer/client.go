package grpcpeer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/ahrav/go-peerscore/internal/domain"
	"github.com/ahrav/go-peerscore/internal/transport/wire"
)

// Client sends recognition requests to peers. Connections are created lazily
// per address and reused across rounds; Close releases them.
type Client struct {
	codec    *wire.Codec
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithDialOptions appends gRPC dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithMaxMessageBytes caps send and receive message sizes.
func WithMaxMessageBytes(n int) ClientOption {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(n),
			grpc.MaxCallSendMsgSize(n),
		))
	}
}

// NewClient builds a client using plaintext credentials by default.
func NewClient(codec *wire.Codec, opts ...ClientOption) *Client {
	c := &Client{
		codec:    codec,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		conns:    make(map[string]*grpc.ClientConn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send implements transport.Transport. The per-peer timeout is the context
// deadline; every failure is returned as *domain.TransportError.
func (c *Client) Send(ctx context.Context, task domain.Task, peer domain.PeerRef) (string, error) {
	conn, err := c.conn(peer.Address)
	if err != nil {
		return "", domain.NewTransportError(domain.ErrorKindUnavailable, err)
	}

	req := &wire.RecognitionRequest{Image: task.Payload}
	resp := new(wire.RecognitionResponse)
	if err := conn.Invoke(ctx, FullMethod, req, resp, grpc.ForceCodec(c.codec)); err != nil {
		return "", domain.NewTransportError(classify(ctx, err), err)
	}
	return resp.RecognizedText, nil
}

// Close tears down all cached connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
		delete(c.conns, addr)
	}
	return errors.Join(errs...)
}

func (c *Client) conn(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conns[addr] = conn
	return conn, nil
}

func classify(ctx context.Context, err error) domain.ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}
	st, ok := status.FromError(err)
	if !ok {
		return domain.ErrorKindUnknown
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return domain.ErrorKindTimeout
	case codes.Canceled:
		return domain.ErrorKindCancelled
	case codes.Unavailable:
		if strings.Contains(st.Message(), "connection refused") {
			return domain.ErrorKindConnectionRefused
		}
		return domain.ErrorKindUnavailable
	case codes.Internal, codes.ResourceExhausted:
		// Decode failures on either side surface as Internal; oversized
		// payloads as ResourceExhausted.
		return domain.ErrorKindMalformedResponse
	case codes.Unimplemented:
		return domain.ErrorKindUnavailable
	default:
		return domain.ErrorKindUnknown
	}
}
