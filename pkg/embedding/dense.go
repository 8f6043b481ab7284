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

package embedding

import (
	"context"
	"strings"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/httpclient"
)

// Dense calls an OpenAI-compatible /v1/embeddings endpoint. TEI serving
// an e5-family model is the usual deployment; api.openai.com works too.
type Dense struct {
	cfg      *config.DenseEmbeddingConfig
	endpoint string
	client   *httpclient.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewDense builds the client. The endpoint accepts a base URL with or
// without the /v1 suffix.
func NewDense(cfg *config.DenseEmbeddingConfig) *Dense {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return &Dense{
		cfg:      cfg,
		endpoint: base + "/embeddings",
		client: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

func (e *Dense) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts preserving input order, splitting requests at
// the configured batch size.
func (e *Dense) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	headers := map[string]string{}
	if e.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + e.cfg.APIKey
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		batch := texts[start:end]

		var resp embedResponse
		err := e.client.PostJSON(ctx, e.endpoint, headers, embedRequest{Model: e.cfg.Model, Input: batch}, &resp)
		if err != nil {
			if httpclient.IsRateLimited(err) {
				return nil, errs.E(errs.RateLimited, "embedding.batch", "embedding server rate limited", err)
			}
			return nil, errs.E(errs.Transient, "embedding.batch", "embedding request failed", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, errs.Ef(errs.Internal, "embedding.batch",
				"embedding server returned %d vectors for %d inputs", len(resp.Data), len(batch))
		}

		// servers may reorder; the index field restores input order
		ordered := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(ordered) {
				return nil, errs.Ef(errs.Internal, "embedding.batch", "embedding index %d out of range", item.Index)
			}
			ordered[item.Index] = item.Embedding
		}
		results = append(results, ordered...)
	}
	return results, nil
}

func (e *Dense) Dimension() int { return e.cfg.Dimension }

func (e *Dense) Model() string { return e.cfg.Model }

func (e *Dense) Close() error { return nil }

var _ Embedder = (*Dense)(nil)
