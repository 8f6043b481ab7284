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

package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/service"
	"github.com/ragforge/mcprag/pkg/tool"
)

// statusCarrier is satisfied by every service result through its
// embedded Status.
type statusCarrier interface {
	Succeeded() bool
}

// toolRoutes mounts the REST mirror of the tool surface. Bodies are
// JSON; uploads carry file_content as base64, same as over MCP.
func (s *Server) toolRoutes(r chi.Router) {
	r.Post("/create_kb", func(w http.ResponseWriter, r *http.Request) {
		s.dispatchBody(w, r, tool.NameCreateKB, http.StatusCreated)
	})
	r.Get("/list_kbs", func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, tool.NameListKBs, map[string]any{}, http.StatusOK)
	})
	r.Delete("/kb/{kb}", func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, tool.NameDeleteKB, pathArgs(r), http.StatusOK)
	})

	r.Post("/upload_document", func(w http.ResponseWriter, r *http.Request) {
		s.dispatchBody(w, r, tool.NameUploadDocument, http.StatusOK)
	})
	r.Get("/kb/{kb}/documents", func(w http.ResponseWriter, r *http.Request) {
		args := pathArgs(r)
		queryArg(r, args, "limit")
		queryArg(r, args, "offset")
		s.dispatch(w, r, tool.NameListDocuments, args, http.StatusOK)
	})
	r.Get("/kb/{kb}/documents/{filename}", func(w http.ResponseWriter, r *http.Request) {
		args := pathArgs(r)
		queryArg(r, args, "include_chunks")
		s.dispatch(w, r, tool.NameGetDocument, args, http.StatusOK)
	})
	r.Put("/kb/{kb}/documents/{filename}", func(w http.ResponseWriter, r *http.Request) {
		args, ok := decodeBody(w, r)
		if !ok {
			return
		}
		for k, v := range pathArgs(r) {
			args[k] = v
		}
		s.dispatch(w, r, tool.NameUpdateDocument, args, http.StatusOK)
	})
	r.Delete("/kb/{kb}/documents/{filename}", func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, tool.NameDeleteDocument, pathArgs(r), http.StatusOK)
	})

	r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
		s.dispatchBody(w, r, tool.NameSearch, http.StatusOK)
	})
	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		s.dispatchBody(w, r, tool.NameChat, http.StatusOK)
	})
	r.Post("/auto_routing_chat", func(w http.ResponseWriter, r *http.Request) {
		s.dispatchBody(w, r, tool.NameAutoRoutingChat, http.StatusOK)
	})
	r.Post("/clear_history", s.handleClearHistory)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
}

// dispatchBody decodes the JSON body into arguments and dispatches.
func (s *Server) dispatchBody(w http.ResponseWriter, r *http.Request, name string, okStatus int) {
	args, ok := decodeBody(w, r)
	if !ok {
		return
	}
	s.dispatch(w, r, name, args, okStatus)
}

// dispatch runs one tool call and writes the result. Service-level
// failures keep their result body but answer 400; dispatch errors map
// through their error kind.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, name string, args map[string]any, okStatus int) {
	result, err := s.dispatcher.Dispatch(r.Context(), name, args)
	if err != nil {
		writeError(w, statusForKind(errs.KindOf(err)), errs.UserMessage(err))
		return
	}

	status := okStatus
	if carrier, ok := result.(statusCarrier); ok && !carrier.Succeeded() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// handleClearHistory passes the result through unchanged: clearing an
// unknown session reports success=false but is not an HTTP error.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	args, ok := decodeBody(w, r)
	if !ok {
		return
	}
	result, err := s.dispatcher.Dispatch(r.Context(), tool.NameClearHistory, args)
	if err != nil {
		writeError(w, statusForKind(errs.KindOf(err)), errs.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports component health, answering 503 when any
// component is down so load balancers can rotate the instance out.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.dispatcher.Dispatch(r.Context(), tool.NameHealth, map[string]any{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, errs.UserMessage(err))
		return
	}

	status := http.StatusOK
	if health, ok := result.(*service.HealthResult); ok && !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Tracer().Stats())
}

// decodeBody reads a JSON object body. An empty body is an empty
// argument map; anything unparsable answers 400 and reports false.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	args := map[string]any{}
	err := json.NewDecoder(r.Body).Decode(&args)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "request body is not a JSON object")
		return nil, false
	}
	return args, true
}

// pathArgs lifts chi route parameters into tool arguments.
func pathArgs(r *http.Request) map[string]any {
	args := map[string]any{}
	if kb := chi.URLParam(r, "kb"); kb != "" {
		args["kb_name"] = kb
	}
	if filename := chi.URLParam(r, "filename"); filename != "" {
		args["filename"] = filename
	}
	return args
}

// queryArg copies one query parameter into the arguments when present.
// The dispatcher's weakly typed decoding handles the string-to-number
// conversion.
func queryArg(r *http.Request, args map[string]any, name string) {
	if v := r.URL.Query().Get(name); v != "" {
		args[name] = v
	}
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.InvalidArgument:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.AlreadyExists:
		return http.StatusConflict
	case errs.RateLimited:
		return http.StatusTooManyRequests
	case errs.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success":     false,
		"message":     message,
		"status_code": status,
	})
}
