// Package server exposes the chord pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RyanBlaney/sonido-chords/analysis"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// Processor runs the pipeline for one locator
type Processor interface {
	Process(ctx context.Context, locator string) (*analysis.Result, error)
}

// Config holds server configuration
type Config struct {
	Port            string        `json:"port"`
	WriteTimeout    time.Duration `json:"write_timeout"` // must exceed the processing budget
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigin   string        `json:"allowed_origin"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:            "8080",
		WriteTimeout:    6 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		AllowedOrigin:   "*",
	}
}

// Server is the HTTP server
type Server struct {
	config    Config
	router    *chi.Mux
	processor Processor
	logger    logging.Logger
}

// New creates a server. A nil logger uses the global one.
func New(cfg Config, processor Processor, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		processor: processor,
		logger:    logger.WithFields(logging.Fields{"component": "server"}),
	}

	s.setupRoutes()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/readChords", s.handleReadChords)
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", logging.Fields{"port": s.config.Port})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
