// Package api exposes preference groups over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CreativeUnicorns/prefer"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	prefer     *prefer.Prefer
	logger     prefer.Logger
	router     *chi.Mux
	httpServer *http.Server

	// streams is cancelled on shutdown to end open event streams.
	streams      context.Context
	closeStreams context.CancelFunc
}

// Config holds configuration for the API server.
type Config struct {
	ListenAddress string
	Prefer        *prefer.Prefer
	Logger        prefer.Logger
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// NewServer creates and configures a new API server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Prefer == nil {
		return nil, fmt.Errorf("%w: prefer is required", prefer.ErrNilArgument)
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Prefer.Logger()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	s := &Server{
		prefer: cfg.Prefer,
		logger: cfg.Logger,
		router: chi.NewRouter(),
	}
	s.streams, s.closeStreams = context.WithCancel(context.Background())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.closeStreams)

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it is shut down.
// A graceful shutdown returns nil.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("could not start server: %w", err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("API server starting", "address", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
// Open event streams are ended first.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("API server stopping")
	s.closeStreams()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("API server stopped gracefully")
	return nil
}
