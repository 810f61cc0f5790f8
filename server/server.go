// Package server implements the Main Server: it builds every configured component in dependency order,
// runs them, and tears them down on signal. Grounded on cmd/n2kreader/main.go's/cmd/actisense/main.go's
// signal.NotifyContext(syscall.SIGINT, syscall.SIGTERM) setup/run/teardown shape, generalized from one
// fixed device to an arbitrary configured component set.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sterwen-nav/nmea-router/config"
	"github.com/sterwen-nav/nmea-router/internal/clog"
)

// Runnable is implemented by components the Server starts and stops: Run blocks until ctx is cancelled or
// the component fails on its own.
type Runnable interface {
	Run(ctx context.Context) error
}

// built holds one constructed component alongside the category it was built from, in build order.
// Shutdown cancels one context shared by every component; components are not stopped one by one in
// reverse build order.
type built struct {
	category string
	name     string
	obj      interface{}
}

// Server is the Main Server: it owns the full object graph built from a config.Config and the goroutines
// running each Runnable component.
type Server struct {
	cfg      *config.Config
	registry *config.Registry
	log      clog.Clog

	mu      sync.Mutex
	built   []built
	wg      sync.WaitGroup
	runErrs []error
}

// New constructs a Server that will build components from cfg using the process-wide registry (or r, if
// non-nil — tests pass their own to avoid the global registry's shared state).
func New(cfg *config.Config, r *config.Registry) *Server {
	if r == nil {
		r = config.Default()
	}
	return &Server{
		cfg:      cfg,
		registry: r,
		log:      clog.New(cfg.ServerName + ": "),
	}
}

// Build constructs every configured component in config.BuildOrder, failing fast on the first error —
// matching the original's build_configuration raising on the first ObjectCreationError.
func (s *Server) Build() error {
	for _, category := range config.BuildOrder {
		for _, c := range s.cfg.Components(category) {
			obj, err := s.registry.Build(c)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.built = append(s.built, built{category: category, name: c.Name, obj: obj})
			s.mu.Unlock()
			s.log.Debug("built %s %q", category, c.Name)
		}
	}
	return nil
}

// Start launches a goroutine for every built component that implements Runnable, in build order.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.built {
		r, ok := b.obj.(Runnable)
		if !ok {
			continue
		}
		b := b
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("%s %q stopped: %v", b.category, b.name, err)
				s.mu.Lock()
				s.runErrs = append(s.runErrs, fmt.Errorf("%s %q: %w", b.category, b.name, err))
				s.mu.Unlock()
			}
		}()
	}
}

// Wait blocks until every Runnable component's goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Errs returns the errors, if any, returned by Runnable components that stopped before ctx was cancelled.
func (s *Server) Errs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErrs
}

// Run builds and starts the server, then blocks until a SIGINT/SIGTERM is received or ctx is otherwise
// cancelled, and returns the process exit code per spec.md §6 (0 on clean shutdown, 1 after a second
// SIGINT while the first is still draining).
func Run(ctx context.Context, cfg *config.Config, r *config.Registry) int {
	s := New(cfg, r)
	if err := s.Build(); err != nil {
		s.log.Critical("build failed: %v", err)
		return 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(runCtx)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-sigCh:
		s.log.Warn("shutting down")
		cancel()
	case <-done:
	}

	select {
	case <-done:
		if len(s.Errs()) > 0 {
			return 1
		}
		return 0
	case <-sigCh:
		s.log.Critical("second interrupt, forcing exit")
		return 1
	}
}
