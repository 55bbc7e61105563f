// Package server provides the HTTP server for the jabcam punch tracker.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/jabcam/internal/app"
	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/plugin"
	"github.com/ayusman/jabcam/internal/server/api"
	"github.com/ayusman/jabcam/internal/session"
	"github.com/ayusman/jabcam/internal/store"
)

// Engine is the capture side the server streams from and controls.
type Engine interface {
	api.Controller
	Subscribe(buffer int) (<-chan *app.Frame, func())
	StartSession(mode session.Mode) (*session.Session, error)
	FinishSession(s *session.Session) session.Summary
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    Engine
	Hub       *events.Hub
	Plugins   *plugin.Manager

	// StreamFPS caps the frame rate of each /boxing_feed response.
	// Zero streams every frame.
	StreamFPS   int
	JPEGQuality int

	Logger *slog.Logger
}

// Server represents the HTTP server for the jabcam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logging.OrDiscard(config.Logger).With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/ping", s.handlePing)

	if s.config.Engine != nil {
		s.mux.Handle("/boxing_feed", NewFeedHandler(s.config.Engine, FeedOptions{
			FPS:     s.config.StreamFPS,
			Quality: s.config.JPEGQuality,
			Logger:  s.logger,
		}))
		s.mux.Handle("/api/status", api.NewStatusHandler(s.config.Engine, s.config.Store))
		s.mux.Handle("/api/config", api.NewConfigHandler(s.config.Engine))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/punches", NewPunchesHandler(s.config.Hub, s.logger))
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		// A nil *plugin.Manager must not reach the interface.
		var resolver api.PluginResolver
		if s.config.Plugins != nil {
			resolver = s.config.Plugins
		}
		bindings := api.NewBindingHandler(s.config.Store, resolver)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
	}

	if s.config.Plugins != nil {
		plugins := api.NewPluginHandler(s.config.Plugins)
		s.mux.Handle("/api/plugins", plugins)
		s.mux.Handle("/api/plugins/", plugins)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handlePing answers liveness probes from the web client.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write([]byte("Successfully pinged"))
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// HTTPServer returns an http.Server for addr, for callers that need
// graceful shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
