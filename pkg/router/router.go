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

// Package router picks which knowledge base a query should hit. Each
// KB's description is embedded into the master index collection; a
// dense search over those descriptions ranks candidate KBs.
package router

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/kb"
	"github.com/ragforge/mcprag/pkg/vector"
)

// Candidate is a routing hit.
type Candidate struct {
	KBName      string  `json:"kb_name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}

// Entry is one KB's master index record.
type Entry struct {
	KBName      string `json:"kb_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Router searches and maintains the master index.
type Router struct {
	store  vector.Store
	dense  embedding.Embedder
	sparse *embedding.BM25Encoder
	cfg    *config.SearchConfig
}

// New wires a router over the master index collection.
func New(store vector.Store, dense embedding.Embedder, sparse *embedding.BM25Encoder, cfg *config.SearchConfig) *Router {
	return &Router{store: store, dense: dense, sparse: sparse, cfg: cfg}
}

// EnsureMaster creates the master index collection if missing.
func (r *Router) EnsureMaster(ctx context.Context, denseDim int) error {
	return r.store.EnsureCollection(ctx, kb.MasterIndex, denseDim)
}

// Route returns up to topK KBs whose descriptions best match the
// query, above the configured route threshold. A non-empty whitelist
// restricts the candidates to those names. The underlying search is
// widened to topK*2 so whitelist filtering still fills topK slots.
func (r *Router) Route(ctx context.Context, query string, whitelist []string, topK int) ([]Candidate, error) {
	if topK <= 0 {
		topK = 1
	}

	queryDense, err := r.dense.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.SearchDense(ctx, kb.MasterIndex, queryDense, vector.SearchOptions{
		Limit:          topK * 2,
		ScoreThreshold: float32(r.cfg.RouteThreshold),
	})
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = true
	}

	selected := make([]Candidate, 0, topK)
	for _, hit := range hits {
		name := vector.PayloadString(hit.Payload, "kb_name")
		if name == "" {
			continue
		}
		if len(whitelist) > 0 && !allowed[name] {
			continue
		}
		selected = append(selected, Candidate{
			KBName:      name,
			Score:       float64(hit.Score),
			Description: vector.PayloadString(hit.Payload, "description"),
			Category:    categoryOrDefault(hit.Payload),
		})
		if len(selected) == topK {
			break
		}
	}

	if len(selected) > 0 {
		slog.Info("routed query",
			"kb", selected[0].KBName, "score", selected[0].Score)
	} else {
		slog.Warn("no knowledge base matched query",
			"threshold", r.cfg.RouteThreshold)
	}
	return selected, nil
}

// AddKB indexes a KB description in the master index and returns the
// point id. The description is embedded both densely and sparsely so
// the master index stays searchable either way.
func (r *Router) AddKB(ctx context.Context, kbName, description, category string) (string, error) {
	if category == "" {
		category = "general"
	}

	dense, err := r.dense.Embed(ctx, description)
	if err != nil {
		return "", err
	}
	sparse := r.sparse.EncodeDocument(description)

	pointID := uuid.NewString()
	point := vector.Point{
		ID:     pointID,
		Dense:  dense,
		Sparse: sparse,
		Payload: map[string]any{
			kb.FieldType:  kb.TypeKBIndex,
			"text":        description,
			"kb_name":     kbName,
			"description": description,
			"category":    category,
		},
	}
	if err := r.store.Upsert(ctx, kb.MasterIndex, []vector.Point{point}); err != nil {
		return "", err
	}

	slog.Info("added kb to master index", "kb", kbName, "category", category)
	return pointID, nil
}

// RemoveKB deletes a KB's master index entries.
func (r *Router) RemoveKB(ctx context.Context, kbName string) error {
	err := r.store.DeleteByFilter(ctx, kb.MasterIndex, vector.Filter{"kb_name": kbName})
	if err != nil {
		return err
	}
	slog.Info("removed kb from master index", "kb", kbName)
	return nil
}

// ListKBs scrolls every KB entry in the master index.
func (r *Router) ListKBs(ctx context.Context) ([]Entry, error) {
	records, err := r.store.Scroll(ctx, kb.MasterIndex,
		vector.Filter{kb.FieldType: kb.TypeKBIndex}, 100)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, Entry{
			KBName:      vector.PayloadString(record.Payload, "kb_name"),
			Description: vector.PayloadString(record.Payload, "description"),
			Category:    categoryOrDefault(record.Payload),
		})
	}
	return entries, nil
}

func categoryOrDefault(payload map[string]any) string {
	if category := vector.PayloadString(payload, "category"); category != "" {
		return category
	}
	return "general"
}
