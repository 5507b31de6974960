// Package server provides the HTTP surface of the Nova command hub.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/nova/internal/arbiter"
	"github.com/ayusman/nova/internal/logging"
	"github.com/ayusman/nova/internal/server/api"
	"github.com/ayusman/nova/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// Arbiter owns the shared command state. Required.
	Arbiter *arbiter.Arbiter
	// Store enables the /api/commands journal endpoints.
	Store *store.Store
	// Feed enables the /ws live feed.
	Feed *Feed
	// StaticDir, when set, is served at / instead of the banner message.
	StaticDir string
}

// Server represents the HTTP server of the hub.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
}

// New creates a new Server with the given configuration.
// A nil Arbiter is replaced with a default one.
func New(config Config) *Server {
	if config.Arbiter == nil {
		config.Arbiter = arbiter.New()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = withCORS(s.mux)
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/command", s.handlePush)
	s.mux.HandleFunc("/status", s.handlePull)
	s.mux.HandleFunc("/api/state", s.handlePeek)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		commands := api.NewCommandsHandler(s.config.Store)
		s.mux.Handle("/api/commands", commands)
		s.mux.Handle("/api/commands/", commands)
	}

	if s.config.Feed != nil {
		s.mux.Handle("/ws", s.config.Feed)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	} else {
		s.mux.HandleFunc("/", s.handleRoot)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.config.Arbiter.Peek()
	response := map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"seq":     snap.Seq,
		"max_age": s.config.Arbiter.MaxAge().Seconds(),
		"journal": s.config.Store != nil,
	}
	if s.config.Feed != nil {
		response["clients"] = s.config.Feed.ClientCount()
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// handleRoot answers the bare root path with a banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		api.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Nova hub is active"})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within the given grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infow("hub listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
