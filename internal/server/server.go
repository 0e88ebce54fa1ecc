// Package server provides the HTTP status and history surface for the
// wand recognition system.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmfall/sortilege/internal/capture"
	"github.com/jmfall/sortilege/internal/controller"
	"github.com/jmfall/sortilege/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Source     capture.Source
	Controller *controller.Controller
}

// Server is the HTTP server for the application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)

		s.events = NewEventsHandler()
		s.config.Controller.OnEvent(s.events.Publish)
		s.mux.Handle("/api/events", s.events)
	}

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/casts", s.handleCasts)
		s.mux.HandleFunc("/api/casts/", s.handleCastByID)
	}

	if s.config.Source != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Source))
	}

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

	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus reports the controller's state and counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := s.config.Controller
	writeJSON(w, map[string]any{
		"state":   c.State().String(),
		"enabled": c.IsEnabled(),
		"stats":   c.Stats(),
	})
}

// handleCasts handles GET requests to /api/casts, newest first. The
// optional limit query parameter caps the result.
func (s *Server) handleCasts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	casts, err := s.config.Store.Casts().List(limit)
	if err != nil {
		http.Error(w, "Failed to list casts", http.StatusInternalServerError)
		return
	}
	if casts == nil {
		casts = []*store.Cast{}
	}

	writeJSON(w, casts)
}

// handleCastByID handles GET and DELETE requests to /api/casts/{id}.
func (s *Server) handleCastByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/casts/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		cast, err := s.config.Store.Casts().GetByID(id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to load cast", http.StatusInternalServerError)
			return
		}
		writeJSON(w, cast)

	case http.MethodDelete:
		err := s.config.Store.Casts().Delete(id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to delete cast", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
