// Package server implements the editor backend: the file listing and
// file read/write API over a configuration directory, and entity and
// service discovery proxied from the home-automation supervisor.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/logging"
	"github.com/odvcencio/confedit/metrics"
	"github.com/odvcencio/confedit/web"
)

// DefaultHAURL is the supervisor's core API as seen from inside an add-on.
const DefaultHAURL = "http://supervisor/core/api"

// Config holds backend configuration.
type Config struct {
	ConfigDir string
	HAURL     string
	Token     string
	// StaticDir holds the presentation files. Empty disables static serving.
	StaticDir string
	// Timeout bounds supervisor requests. Defaults to 10s.
	Timeout time.Duration
	Logger  *zap.Logger
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Server is the backend HTTP server.
type Server struct {
	files     *Files
	ha        *HomeAssistant
	staticDir string
	log       *zap.Logger
}

// New creates a backend server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HAURL == "" {
		cfg.HAURL = DefaultHAURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Token == "" {
		cfg.Logger.Warn("supervisor token not set; entity discovery disabled")
	}
	return &Server{
		files:     NewFiles(cfg.ConfigDir, cfg.Logger),
		ha:        NewHomeAssistant(cfg.HAURL, cfg.Token, cfg.Timeout, cfg.Logger),
		staticDir: cfg.StaticDir,
		log:       cfg.Logger,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/services", s.handleServices)

	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{path...}", s.handleReadFile)
	mux.HandleFunc("PUT /api/files/{path...}", s.handleWriteFile)

	if s.staticDir != "" {
		mux.Handle("/", web.StaticHandler(s.staticDir))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			s.sendError(w, http.StatusNotFound, "Not found")
		})
	}

	// metrics sits inside logging so it sees the request the mux routed.
	return logging.Middleware(s.log)(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("encode response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, ErrorResponse{Error: message, Code: code})
}
