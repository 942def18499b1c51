package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

// NewBufconnClient starts a gRPC server on an in-memory listener, lets
// register attach services to it, and returns a client connection dialed to
// that server. opts are passed to grpc.NewServer.
//
// Precondition: register must be non-nil.
// Postcondition: Returns a connected client; the server and client are
// stopped when the test ends.
func NewBufconnClient(t *testing.T, register func(*grpc.Server), opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	start := time.Now()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(opts...)
	register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dialing bufconn: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	t.Logf("bufconn grpc client ready [%s]", time.Since(start))
	return conn
}
