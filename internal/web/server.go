// Package web serves the HTTP surface: library operations, status and activity.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/activity"
	"github.com/saltyorg/easierlife/internal/web/handlers"
	"github.com/saltyorg/easierlife/internal/web/middleware"
	"github.com/saltyorg/easierlife/internal/web/sse"
)

// StatusPrefixes are the route prefixes that serve the status endpoints
var StatusPrefixes = []string{"/EasierLife", "/Plugins/JellyfinEasierLife"}

// Config holds the listener settings
type Config struct {
	Port       int
	Bind       string
	AllowedNet *net.IPNet
}

// Server represents the web server
type Server struct {
	cfg       Config
	router    *chi.Mux
	sseBroker *sse.Broker
	handlers  *handlers.Handlers
}

// NewServer creates the server and wires tracker activity into the event stream
func NewServer(cfg Config, deps handlers.Deps, auth middleware.Authenticator) *Server {
	if deps.Broker == nil {
		deps.Broker = sse.NewBroker()
	}
	broker := deps.Broker

	deps.Tracker.OnRecord(func(rec activity.Record) {
		broker.Broadcast(sse.Event{Type: sse.EventActivityRecorded, Data: rec})
	})
	deps.Tracker.OnReset(func() {
		broker.Broadcast(sse.Event{Type: sse.EventStatisticsReset, Data: map[string]any{"time": time.Now().Unix()}})
	})

	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		sseBroker: broker,
		handlers:  handlers.New(deps),
	}
	s.setupRoutes(auth)
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// SSEBroker returns the SSE broker for broadcasting events
func (s *Server) SSEBroker() *sse.Broker {
	return s.sseBroker
}

func (s *Server) setupRoutes(auth middleware.Authenticator) {
	r := s.router
	h := s.handlers

	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.AllowSubnet(s.cfg.AllowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequireToken(auth))

	// Library passes run for as long as the caller keeps the request open
	r.Route("/Library", func(r chi.Router) {
		r.Post("/ReplaceMetadata", h.ReplaceMetadata)
		r.Post("/CombineSeasons", h.CombineSeasons)
		r.Post("/CombineSeasonsForLibrary", h.CombineSeasonsForLibrary)
	})

	r.Get("/EasierLife/Events/Stream", s.sseBroker.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		for _, prefix := range StatusPrefixes {
			r.Get(prefix+"/Status", h.Status)
			r.Get(prefix+"/Activity", h.Activity)
			r.Post(prefix+"/ResetStatistics", h.ResetStatistics)
		}

		r.Get("/EasierLife/Configuration", h.GetConfiguration)
		r.Post("/EasierLife/Configuration", h.UpdateConfiguration)
		r.Post("/EasierLife/Events", h.Events)
		r.Get("/EasierLife/Combinations", h.Combinations)
		r.Get("/EasierLife/Libraries", h.Libraries)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	if s.cfg.Bind != "" {
		addr = net.JoinHostPort(s.cfg.Bind, fmt.Sprint(s.cfg.Port))
	}

	server := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout disabled (0) to allow SSE and long library passes
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		// Stop SSE broker first to close all client connections gracefully
		s.sseBroker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.sseBroker.Stop()
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}
