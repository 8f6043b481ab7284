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

package retriever

import (
	"context"
	"math"
	"testing"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/vector"
)

type fixedEmbedder struct{ vec []float32 }

func (e fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, nil
}

func (e fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func (e fixedEmbedder) Dimension() int { return len(e.vec) }
func (e fixedEmbedder) Model() string  { return "fixed" }
func (e fixedEmbedder) Close() error   { return nil }

// scriptedReranker maps passage text to a fixed score.
type scriptedReranker struct{ scores map[string]float32 }

func (r scriptedReranker) Score(_ context.Context, _ string, texts []string) ([]float32, error) {
	out := make([]float32, len(texts))
	for i, text := range texts {
		out[i] = r.scores[text]
	}
	return out, nil
}

func (r scriptedReranker) Model() string { return "scripted" }

func searchConfig() *config.SearchConfig {
	cfg := &config.SearchConfig{}
	cfg.SetDefaults()
	return cfg
}

func sparseEncoder() *embedding.BM25Encoder {
	cfg := &config.SparseEmbeddingConfig{}
	cfg.SetDefaults()
	return embedding.NewBM25(cfg)
}

// seedStore fills a collection with three chunks at decreasing dense
// similarity to the query vector [1, 0]. Only the first two mention
// "alpha", so sparse search sees just those.
func seedStore(t *testing.T) vector.Store {
	t.Helper()
	store := vector.NewInMemory()
	ctx := context.Background()
	if err := store.EnsureCollection(ctx, "kb_test", 2); err != nil {
		t.Fatal(err)
	}

	enc := sparseEncoder()
	points := []vector.Point{
		{
			ID:      "p1",
			Dense:   []float32{1, 0},
			Sparse:  enc.EncodeDocument("alpha permit rules"),
			Payload: map[string]any{"text": "alpha permit rules", "filename": "a.pdf", "page": 1},
		},
		{
			ID:      "p2",
			Dense:   []float32{0.9, 0.1},
			Sparse:  enc.EncodeDocument("alpha renewal steps"),
			Payload: map[string]any{"text": "alpha renewal steps", "filename": "a.pdf", "page": 2},
		},
		{
			ID:      "p3",
			Dense:   []float32{0, 1},
			Sparse:  enc.EncodeDocument("unrelated material"),
			Payload: map[string]any{"text": "unrelated material", "filename": "b.pdf", "page": 1},
		},
	}
	if err := store.Upsert(ctx, "kb_test", points); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRetrieveHybrid(t *testing.T) {
	store := seedStore(t)
	r := New(store, fixedEmbedder{vec: []float32{1, 0}}, sparseEncoder(), nil, searchConfig())

	results, err := r.Retrieve(context.Background(), "alpha", "kb_test", Options{TopK: 2})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// p1 leads both ranked lists, p2 follows in both.
	if results[0].ID != "p1" || results[1].ID != "p2" {
		t.Errorf("order: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Payload["filename"] != "a.pdf" {
		t.Errorf("payload lost: %+v", results[0].Payload)
	}
}

func TestRetrieveWithDetailsStages(t *testing.T) {
	store := seedStore(t)
	cfg := searchConfig()
	r := New(store, fixedEmbedder{vec: []float32{1, 0}}, sparseEncoder(), nil, cfg)

	details, err := r.RetrieveWithDetails(context.Background(), "alpha", "kb_test", Options{TopK: 1})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// top_k times the multiplier bounds each raw search.
	if details.Config.SearchLimit != 2 {
		t.Errorf("search limit: %d", details.Config.SearchLimit)
	}
	if len(details.Dense) != 2 {
		t.Errorf("dense stage: %d results", len(details.Dense))
	}
	if len(details.Final) != 1 || details.Final[0].ID != "p1" {
		t.Errorf("final stage: %+v", details.Final)
	}
	if len(details.Fused) < len(details.Final) {
		t.Errorf("fused stage smaller than final")
	}
	if details.Config.UseReranking {
		t.Error("reranking reported without a reranker")
	}
}

func TestRetrieveRerankReplacesScores(t *testing.T) {
	store := seedStore(t)
	reranker := scriptedReranker{scores: map[string]float32{
		"alpha permit rules":  0.2,
		"alpha renewal steps": 0.9,
		"unrelated material":  0.1,
	}}
	r := New(store, fixedEmbedder{vec: []float32{1, 0}}, sparseEncoder(), reranker, searchConfig())

	results, err := r.Retrieve(context.Background(), "alpha", "kb_test", Options{TopK: 2, UseReranking: true})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "p2" {
		t.Errorf("rerank should promote p2, got %s", results[0].ID)
	}
	if math.Abs(results[0].Score-0.9) > 1e-6 {
		t.Errorf("score should come from the reranker, got %v", results[0].Score)
	}
}

func TestRetrieveRerankThreshold(t *testing.T) {
	store := seedStore(t)
	reranker := scriptedReranker{scores: map[string]float32{
		"alpha permit rules":  0.8,
		"alpha renewal steps": 0.3,
		"unrelated material":  0.1,
	}}
	cfg := searchConfig()
	cfg.RerankThreshold = 0.5
	r := New(store, fixedEmbedder{vec: []float32{1, 0}}, sparseEncoder(), reranker, cfg)

	results, err := r.Retrieve(context.Background(), "alpha", "kb_test", Options{TopK: 5, UseReranking: true})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 || results[0].ID != "p1" {
		t.Errorf("threshold should keep only p1: %+v", results)
	}
}

func TestRetrieveZeroThresholdKeepsAll(t *testing.T) {
	store := seedStore(t)
	reranker := scriptedReranker{scores: map[string]float32{
		"alpha permit rules":  -0.5,
		"alpha renewal steps": -1.2,
		"unrelated material":  -2.0,
	}}
	r := New(store, fixedEmbedder{vec: []float32{1, 0}}, sparseEncoder(), reranker, searchConfig())

	results, err := r.Retrieve(context.Background(), "alpha", "kb_test", Options{TopK: 5, UseReranking: true})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// Cross-encoder logits are often negative; a zero threshold must
	// not filter them.
	if len(results) != 3 {
		t.Errorf("expected all 3 results, got %d", len(results))
	}
}
