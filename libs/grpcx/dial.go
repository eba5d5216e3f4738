package grpcx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

type DialOptions struct {
	// Timeout bounds the wait for the first ready connection. Defaults to 3s.
	Timeout time.Duration
	// CallTimeout bounds each unary call that arrives without a deadline. Zero disables it.
	CallTimeout time.Duration
	// TransportCredentials defaults to insecure, for local dev or a mesh that terminates TLS.
	TransportCredentials grpc.DialOption
}

// Dial creates a traced client for addr and waits until it is ready, so a
// misconfigured address fails at startup instead of on the first call.
func Dial(ctx context.Context, addr string, opts DialOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	creds := opts.TransportCredentials
	if creds == nil {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}

	chain := []grpc.UnaryClientInterceptor{UnaryClientRequestIDInterceptor()}
	if opts.CallTimeout > 0 {
		chain = append(chain, UnaryClientTimeoutInterceptor(opts.CallTimeout))
	}
	dialOpts := append([]grpc.DialOption{
		creds,
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(chain...),
	}, extra...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	if err := waitReady(ctx, conn, opts.Timeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return conn, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}
