package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

// GRPCService serves srv on addr.
type GRPCService struct {
	srv     *grpc.Server
	addr    string
	lis     net.Listener
	timeout time.Duration
}

// NewGRPCService creates a GRPCService. The listener is opened by Start, or
// earlier by Listen.
//
// Precondition: srv must be non-nil; addr must be "host:port"; timeout must be > 0.
func NewGRPCService(srv *grpc.Server, addr string, timeout time.Duration) *GRPCService {
	return &GRPCService{srv: srv, addr: addr, timeout: timeout}
}

// Listen opens the TCP listener without serving, so callers can learn the
// bound address before Start.
func (g *GRPCService) Listen() (net.Addr, error) {
	if g.lis != nil {
		return g.lis.Addr(), nil
	}
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", g.addr, err)
	}
	g.lis = lis
	return lis.Addr(), nil
}

// Start serves until Stop is called.
func (g *GRPCService) Start() error {
	if _, err := g.Listen(); err != nil {
		return err
	}
	if err := g.srv.Serve(g.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving grpc: %w", err)
	}
	return nil
}

// Stop waits up to the timeout for in-flight RPCs, then cancels the rest.
// Cancellation dismisses any reload prompt an attack request is parked on.
func (g *GRPCService) Stop() {
	done := make(chan struct{})
	go func() {
		g.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(g.timeout):
		g.srv.Stop()
		<-done
	}
}

// HTTPService serves an http.Server with a bounded graceful shutdown.
type HTTPService struct {
	srv     *http.Server
	timeout time.Duration
}

// NewHTTPService creates an HTTPService.
//
// Precondition: srv must be non-nil with Addr set; timeout must be > 0.
func NewHTTPService(srv *http.Server, timeout time.Duration) *HTTPService {
	return &HTTPService{srv: srv, timeout: timeout}
}

// Start serves until Stop is called.
func (h *HTTPService) Start() error {
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http on %s: %w", h.srv.Addr, err)
	}
	return nil
}

// Stop shuts the server down, closing connections after the timeout.
func (h *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		_ = h.srv.Close()
	}
}
