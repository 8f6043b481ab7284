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

// Package service orchestrates the knowledge base operations behind
// the tool surface: KB lifecycle, document ingest, hybrid search, and
// retrieval-augmented chat. Every operation returns a uniform
// success/message result rather than an error, so the dispatcher can
// hand outcomes straight back to callers.
package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ragforge/mcprag/pkg/chat"
	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/document"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/extract"
	"github.com/ragforge/mcprag/pkg/kb"
	"github.com/ragforge/mcprag/pkg/llm"
	"github.com/ragforge/mcprag/pkg/observability"
	"github.com/ragforge/mcprag/pkg/rerank"
	"github.com/ragforge/mcprag/pkg/retriever"
	"github.com/ragforge/mcprag/pkg/router"
	"github.com/ragforge/mcprag/pkg/vector"
)

// Status is the uniform success/message envelope every operation
// carries.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Succeeded reports the outcome, so transports can map any result onto
// wire status codes without knowing its concrete type.
func (s Status) Succeeded() bool { return s.Success }

func ok(format string, args ...any) Status {
	return Status{Success: true, Message: fmt.Sprintf(format, args...)}
}

func failure(err error) Status {
	return Status{Success: false, Message: err.Error()}
}

func failuref(format string, args ...any) Status {
	return Status{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Deps are the externally constructed clients a Service runs on.
// Reranker, LLM, Progressive, and Metrics are optional.
type Deps struct {
	Store       vector.Store
	Dense       embedding.Embedder
	Sparse      *embedding.BM25Encoder
	Reranker    rerank.Reranker
	LLM         llm.Provider
	Progressive *extract.Processor
	Metrics     observability.Recorder
}

// Service wires the core components into the outward operations.
type Service struct {
	cfg   *config.Config
	store vector.Store
	dense embedding.Embedder

	kbs         *kb.Manager
	docs        *document.Processor
	progressive *extract.Processor
	metadata    *document.MetadataExtractor
	retriever   *retriever.Retriever
	router      *router.Router
	chat        *chat.Engine
	sparse      *embedding.BM25Encoder
	metrics     observability.Recorder

	// extractSem bounds concurrent document extraction so slow VLM
	// uploads cannot occupy every request worker.
	extractSem *semaphore.Weighted
}

// New assembles a Service from pre-built clients.
func New(cfg *config.Config, deps Deps) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Service{
		cfg:         cfg,
		store:       deps.Store,
		dense:       deps.Dense,
		sparse:      deps.Sparse,
		kbs:         kb.NewManager(deps.Store),
		docs:        document.NewProcessor(&cfg.Document, &cfg.Extractor),
		progressive: deps.Progressive,
		metadata:    document.NewMetadataExtractor(deps.LLM),
		retriever:   retriever.New(deps.Store, deps.Dense, deps.Sparse, deps.Reranker, &cfg.Search),
		router:      router.New(deps.Store, deps.Dense, deps.Sparse, &cfg.Search),
		chat:        chat.NewEngine(deps.LLM, &cfg.Chat),
		metrics:     metrics,
		extractSem:  semaphore.NewWeighted(int64(cfg.Document.MaxConcurrentExtractions)),
	}
}

// FromConfig builds every client from configuration and assembles the
// Service. The progressive processor is only constructed when the
// vision tiers are enabled and an API key is present.
func FromConfig(ctx context.Context, cfg *config.Config, metrics observability.Recorder) (*Service, error) {
	store, err := vector.NewQdrant(&cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	provider, err := llm.New(ctx, &cfg.LLM, metrics)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	var reranker rerank.Reranker
	if config.BoolValue(cfg.Reranker.Enabled, true) {
		reranker = rerank.NewTEI(&cfg.Reranker)
	}

	deps := Deps{
		Store:    store,
		Dense:    embedding.NewDense(&cfg.Embedding.Dense),
		Sparse:   embedding.NewBM25(&cfg.Embedding.Sparse),
		Reranker: reranker,
		LLM:      provider,
		Metrics:  metrics,
	}
	svc := New(cfg, deps)

	if config.BoolValue(cfg.Progressive.Enabled, true) && cfg.Progressive.APIKey != "" {
		vlm, err := extract.NewVLM(ctx, cfg.Progressive.APIKey, cfg.Progressive.PerPageTimeout)
		if err != nil {
			return nil, fmt.Errorf("vlm extractor: %w", err)
		}
		svc.progressive = extract.NewProcessor(&cfg.Progressive, svc.docs, vlm)
	}
	return svc, nil
}

// ChatEngine exposes the conversation engine for surfaces that need
// direct session access.
func (s *Service) ChatEngine() *chat.Engine { return s.chat }

// Close releases the underlying clients.
func (s *Service) Close() error {
	var firstErr error
	if err := s.dense.Close(); err != nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Component is one entry in the health report.
type Component struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// HealthResult is the service health report.
type HealthResult struct {
	Healthy    bool                 `json:"healthy"`
	Components map[string]Component `json:"components"`
	Timestamp  time.Time            `json:"timestamp"`
}

// HealthCheck probes the vector store and the embedding backend.
func (s *Service) HealthCheck(ctx context.Context) *HealthResult {
	components := make(map[string]Component, 2)

	if names, err := s.store.ListCollections(ctx); err != nil {
		components["vector_store"] = Component{Status: "error", Detail: err.Error()}
	} else {
		components["vector_store"] = Component{
			Status: "ok",
			Detail: fmt.Sprintf("%d collections", len(names)),
		}
	}

	if probe, err := s.dense.Embed(ctx, "test"); err != nil {
		components["embeddings"] = Component{Status: "error", Detail: err.Error()}
	} else {
		components["embeddings"] = Component{
			Status: "ok",
			Detail: fmt.Sprintf("dimension %d", len(probe)),
		}
	}

	healthy := true
	for _, c := range components {
		if c.Status != "ok" {
			healthy = false
		}
	}
	return &HealthResult{
		Healthy:    healthy,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
}
