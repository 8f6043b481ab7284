// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport serves the tool surface over HTTP. The MCP
// streamable endpoint carries the protocol traffic; a set of REST
// routes mirrors the same tools for callers that do not speak MCP.
// Both funnel into one dispatcher so tracing and statistics stay
// uniform across transports.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ragforge/mcprag/pkg/auth"
	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/observability"
	"github.com/ragforge/mcprag/pkg/tool"
)

// Server is the HTTP front of the service.
type Server struct {
	cfg        *config.Config
	dispatcher *tool.Dispatcher
	obs        *observability.Manager
	validator  *auth.Validator
	httpServer *http.Server
}

// New builds the server. The observability manager may be nil; auth is
// only wired when enabled in configuration.
func New(cfg *config.Config, dispatcher *tool.Dispatcher, obs *observability.Manager) (*Server, error) {
	s := &Server{cfg: cfg, dispatcher: dispatcher, obs: obs}

	if cfg.Auth.Enabled {
		validator, err := auth.NewValidator(cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return nil, fmt.Errorf("auth validator: %w", err)
		}
		s.validator = validator
	}
	return s, nil
}

// Handler returns the full route tree. Exposed for tests and for
// embedding the server behind an existing listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Order: logging, observability, CORS, then auth on the guarded
	// group below.
	r.Use(requestLogger)
	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Metrics()))
	}
	if config.BoolValue(s.cfg.Server.CORSEnabled, true) {
		r.Use(corsMiddleware)
	}

	r.Get("/", s.handleServiceInfo)
	r.Get("/health", s.handleLiveness)
	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	}

	r.Group(func(r chi.Router) {
		if s.validator != nil {
			r.Use(s.validator.Middleware)
			r.Use(claimsLogger)
		}
		r.Handle("/mcp", newMCPHandler(s.dispatcher, s.cfg.Server.Name, s.cfg.Server.Version))
		r.Route("/tools", s.toolRoutes)
	})

	return r
}

// Start listens on the configured address and blocks until the server
// stops. A closed server returns nil.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	slog.Info("http server listening",
		"address", s.cfg.Server.Address(),
		"auth", s.cfg.Auth.Enabled,
		"cors", config.BoolValue(s.cfg.Server.CORSEnabled, true))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleServiceInfo describes the server and groups the tool surface by
// category, mirroring what tools/list exposes over MCP.
func (s *Server) handleServiceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        s.cfg.Server.Name,
		"version":     s.cfg.Server.Version,
		"description": "Multi-KB RAG server with hybrid search over MCP and REST",
		"endpoints": map[string]string{
			"mcp":     "/mcp",
			"tools":   "/tools",
			"health":  "/health",
			"metrics": "/metrics",
		},
		"tools": tool.ByCategory(),
	})
}

// handleLiveness is the cheap liveness probe. Component health lives at
// /tools/health.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
