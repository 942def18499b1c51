// Package server runs the firearm daemon's listeners under one lifecycle:
// ordered startup, signal-driven shutdown, and reverse-order stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service represents a long-running component that can be started and stopped.
type Service interface {
	// Start runs the service and blocks until it stops or fails.
	Start() error
	// Stop asks the service to shut down and waits for it.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle owns the daemon's listeners. Services launch in the order they
// were added and are stopped in reverse, so whatever was added first (the
// database pool in firearmd) outlives everything that depends on it.
type Lifecycle struct {
	logger  *zap.Logger
	signals []os.Signal

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a Lifecycle that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger:  logger.Named("lifecycle"),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Add registers svc under name.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	l.services = append(l.services, namedService{name: name, service: svc})
	l.mu.Unlock()
}

// Run launches every service and blocks until a signal arrives, ctx ends,
// or a service fails.
//
// Postcondition: all services are stopped on return. The error is the first
// service failure, or nil for a signal or cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	began := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	failures := l.launch(services)
	l.logger.Info("listeners launched", zap.Int("services", len(services)))

	err := l.wait(ctx, failures)
	l.stopAll(services)
	l.logger.Info("daemon stopped", zap.Duration("uptime", time.Since(began)))
	return err
}

// launch starts each service on its own goroutine. Failures are buffered so
// a late one never blocks after Run has returned.
func (l *Lifecycle) launch(services []namedService) <-chan error {
	failures := make(chan error, len(services))
	for _, ns := range services {
		go func(ns namedService) {
			l.logger.Info("starting", zap.String("service", ns.name))
			up := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service exited with error",
					zap.String("service", ns.name),
					zap.Duration("uptime", time.Since(up)),
					zap.Error(err),
				)
				failures <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}(ns)
	}
	return failures
}

func (l *Lifecycle) wait(ctx context.Context, failures <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		l.logger.Info("shutting down", zap.Stringer("signal", sig))
		return nil
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", ctx.Err()))
		return nil
	case err := <-failures:
		l.logger.Error("shutting down after service failure", zap.Error(err))
		return err
	}
}

func (l *Lifecycle) stopAll(services []namedService) {
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		t := time.Now()
		ns.service.Stop()
		l.logger.Info("stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(t)),
		)
	}
}
