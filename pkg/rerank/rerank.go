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

// Package rerank scores query/passage pairs with a cross-encoder
// served behind a TEI-compatible /rerank endpoint.
package rerank

import (
	"context"
	"strings"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/httpclient"
)

// Reranker scores passages against a query. Scores come back in input
// order, one per text.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float32, error)
	Model() string
}

// TEI is a client for text-embeddings-inference rerankers
// (bge-reranker and friends).
type TEI struct {
	cfg      *config.RerankerConfig
	endpoint string
	client   *httpclient.Client
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// NewTEI builds the client.
func NewTEI(cfg *config.RerankerConfig) *TEI {
	return &TEI{
		cfg:      cfg,
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/rerank",
		client:   httpclient.New(httpclient.WithTimeout(cfg.Timeout)),
	}
}

func (r *TEI) Score(ctx context.Context, query string, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	headers := map[string]string{}
	if r.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + r.cfg.APIKey
	}

	var results []rerankResult
	err := r.client.PostJSON(ctx, r.endpoint, headers, rerankRequest{Query: query, Texts: texts}, &results)
	if err != nil {
		return nil, errs.E(errs.Transient, "rerank.score", "rerank request failed", err)
	}
	if len(results) != len(texts) {
		return nil, errs.Ef(errs.Internal, "rerank.score",
			"reranker returned %d scores for %d texts", len(results), len(texts))
	}

	scores := make([]float32, len(texts))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, errs.Ef(errs.Internal, "rerank.score", "rerank index %d out of range", res.Index)
		}
		scores[res.Index] = res.Score
	}
	return scores, nil
}

func (r *TEI) Model() string { return r.cfg.Model }

var _ Reranker = (*TEI)(nil)
