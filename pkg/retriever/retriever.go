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

// Package retriever implements hybrid search over one collection:
// dense and sparse queries fan out in parallel, reciprocal rank fusion
// merges the two ranked lists, and an optional cross-encoder rerank
// reorders the survivors. Deduplication and context formatting for
// agent consumption live here too.
package retriever

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/rerank"
	"github.com/ragforge/mcprag/pkg/vector"
)

// Result is one retrieved chunk.
type Result struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Options tune a single retrieval. Zero TopK falls back to the
// configured default.
type Options struct {
	TopK         int
	Filter       vector.Filter
	UseReranking bool
}

// Details exposes every intermediate stage of one retrieval.
type Details struct {
	Query  string        `json:"query"`
	Dense  []Result      `json:"dense_results"`
	Sparse []Result      `json:"sparse_results"`
	Fused  []Result      `json:"rrf_results"`
	Final  []Result      `json:"final_results"`
	Config DetailsConfig `json:"config"`
}

// DetailsConfig is the parameter snapshot the retrieval ran with.
type DetailsConfig struct {
	TopK            int     `json:"top_k"`
	SearchLimit     int     `json:"search_limit"`
	RRFK            int     `json:"rrf_k"`
	RerankThreshold float64 `json:"rerank_threshold"`
	UseReranking    bool    `json:"use_reranking"`
}

// Retriever runs hybrid search. A nil reranker disables the rerank
// stage regardless of options.
type Retriever struct {
	store    vector.Store
	dense    embedding.Embedder
	sparse   *embedding.BM25Encoder
	reranker rerank.Reranker
	cfg      *config.SearchConfig
}

// New wires a retriever. reranker may be nil.
func New(store vector.Store, dense embedding.Embedder, sparse *embedding.BM25Encoder, reranker rerank.Reranker, cfg *config.SearchConfig) *Retriever {
	return &Retriever{
		store:    store,
		dense:    dense,
		sparse:   sparse,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Retrieve returns the final top-k results.
func (r *Retriever) Retrieve(ctx context.Context, query, collection string, opts Options) ([]Result, error) {
	details, err := r.run(ctx, query, collection, opts)
	if err != nil {
		return nil, err
	}
	return details.Final, nil
}

// RetrieveWithDetails also returns the per-stage intermediate lists.
func (r *Retriever) RetrieveWithDetails(ctx context.Context, query, collection string, opts Options) (*Details, error) {
	return r.run(ctx, query, collection, opts)
}

func (r *Retriever) run(ctx context.Context, query, collection string, opts Options) (*Details, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	searchLimit := topK * r.cfg.SearchLimitMultiplier

	slog.Info("hybrid search",
		"collection", collection, "top_k", topK, "query", clip(query, 50))

	queryDense, err := r.dense.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	querySparse := r.sparse.EncodeQuery(query)

	searchOpts := vector.SearchOptions{Limit: searchLimit, Filter: opts.Filter}

	var denseHits, sparseHits []vector.ScoredPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseHits, err = r.store.SearchDense(gctx, collection, queryDense, searchOpts)
		return err
	})
	g.Go(func() error {
		var err error
		sparseHits, err = r.store.SearchSparse(gctx, collection, querySparse, searchOpts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuse(denseHits, sparseHits, r.cfg.RRFK)
	slog.Debug("rrf fusion",
		"dense", len(denseHits), "sparse", len(sparseHits), "fused", len(fused))

	final := fused
	if opts.UseReranking && r.reranker != nil {
		final, err = r.rerankResults(ctx, query, fused)
		if err != nil {
			return nil, err
		}
		if r.cfg.RerankThreshold > 0 {
			kept := make([]Result, 0, len(final))
			for _, res := range final {
				if res.Score >= r.cfg.RerankThreshold {
					kept = append(kept, res)
				}
			}
			final = kept
		}
	}
	if len(final) > topK {
		final = final[:topK]
	}

	return &Details{
		Query:  query,
		Dense:  toResults(denseHits),
		Sparse: toResults(sparseHits),
		Fused:  fused,
		Final:  final,
		Config: DetailsConfig{
			TopK:            topK,
			SearchLimit:     searchLimit,
			RRFK:            r.cfg.RRFK,
			RerankThreshold: r.cfg.RerankThreshold,
			UseReranking:    opts.UseReranking && r.reranker != nil,
		},
	}, nil
}

// rerankResults rescoring replaces the fusion scores entirely.
func (r *Retriever) rerankResults(ctx context.Context, query string, results []Result) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = vector.PayloadString(res.Payload, "text")
	}
	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(results) {
		return nil, errs.Ef(errs.Internal, "retriever.rerank",
			"reranker returned %d scores for %d texts", len(scores), len(results))
	}

	out := make([]Result, len(results))
	for i := range results {
		out[i] = Result{
			ID:      results[i].ID,
			Score:   float64(scores[i]),
			Payload: results[i].Payload,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func toResults(hits []vector.ScoredPoint) []Result {
	out := make([]Result, len(hits))
	for i, hit := range hits {
		out[i] = Result{ID: hit.ID, Score: float64(hit.Score), Payload: hit.Payload}
	}
	return out
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
