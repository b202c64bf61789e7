// Package metrics implements metrics server.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/shipswitch/internal/log"
)

// Server is the HTTP server for Prometheus metrics.
type Server struct {
	addr     string
	path     string
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new metrics server exposing gatherer.
func NewServer(addr, path string, gatherer prometheus.Gatherer) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr:     addr,
		path:     path,
		gatherer: gatherer,
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	log.GetLogger().WithField("addr", ln.Addr().String()).WithField("path", s.path).Info("starting metrics server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.GetLogger().WithError(err).Error("metrics server error")
		}
	}()

	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.GetLogger().Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	log.GetLogger().Info("metrics server stopped")
	return nil
}
