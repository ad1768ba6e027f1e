// Package http serves template expansion over HTTP, for editors and CI
// dashboards that want to preview generated modules without a toolchain.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/template"
)

// MaxTemplateBytes bounds request bodies.
const MaxTemplateBytes = 1 << 20

// Expander is the part of the harness the server needs.
type Expander interface {
	Expand(src, name string) (string, error)
}

// ExpandRequest is the body of POST /expand.
type ExpandRequest struct {
	Template string `json:"template"`
	Name     string `json:"name"`
}

// ExpandResponse is returned on success.
type ExpandResponse struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// ErrorResponse describes a rejected template.
type ErrorResponse struct {
	Error     string `json:"error"`
	Line      int    `json:"line,omitempty"`
	Directive string `json:"directive,omitempty"`
}

// Server handles the HTTP API.
type Server struct {
	expander Expander
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer exposes the given registry on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(exp Expander, opts ...Option) http.Handler {
	s := &Server{expander: exp, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/expand", s.Expand)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Expand handles POST /expand.
func (s *Server) Expand(w http.ResponseWriter, r *http.Request) {
	var body ExpandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxTemplateBytes))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if body.Name == "" {
		body.Name = "mytest"
	}

	src, err := s.expander.Expand(body.Template, body.Name)
	if err != nil {
		resp := ErrorResponse{Error: err.Error()}
		var de *template.DirectiveError
		if errors.As(err, &de) {
			resp.Line, resp.Directive = de.Line, de.Name
		}
		status := http.StatusInternalServerError
		if isAuthoringError(err) {
			status = http.StatusUnprocessableEntity
		}
		s.logger.Warn("expand rejected", "module", body.Name, "err", err)
		writeJSON(w, s.logger, status, resp)
		return
	}

	writeJSON(w, s.logger, http.StatusOK, ExpandResponse{Name: body.Name, Source: src})
}

func isAuthoringError(err error) bool {
	for _, target := range []error{
		domain.ErrUnknownDirective,
		domain.ErrMalformedDirective,
		domain.ErrDirectiveArity,
		domain.ErrTablesLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
