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

package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/llm"
	"github.com/ragforge/mcprag/pkg/service"
	"github.com/ragforge/mcprag/pkg/vector"
)

// keywordEmbedder maps each keyword to its own axis; a small constant
// bias keeps vectors off zero so cosine similarity stays defined.
type keywordEmbedder struct{ keywords []string }

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.keywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	vec[len(e.keywords)] = 0.2
	return vec, nil
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e keywordEmbedder) Dimension() int { return len(e.keywords) + 1 }
func (e keywordEmbedder) Model() string  { return "keyword" }
func (e keywordEmbedder) Close() error   { return nil }

// scriptedLLM answers every generation with a fixed reply.
type scriptedLLM struct {
	reply string
	usage llm.Usage
}

func (p scriptedLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: p.reply, Model: "scripted", Usage: p.usage}, nil
}

func (p scriptedLLM) Model() string { return "scripted" }
func (p scriptedLLM) Close() error  { return nil }

// newTestService builds a service on the in-memory store with keyword
// embeddings and a scripted LLM. Reranking is disabled so scores stay
// predictable.
func newTestService(t *testing.T, keywords ...string) *service.Service {
	t.Helper()
	if len(keywords) == 0 {
		keywords = []string{"permit", "invoice"}
	}
	cfg := config.Default()
	cfg.Reranker.Enabled = config.BoolPtr(false)

	sparseCfg := &config.SparseEmbeddingConfig{}
	sparseCfg.SetDefaults()

	return service.New(cfg, service.Deps{
		Store:  vector.NewInMemory(),
		Dense:  keywordEmbedder{keywords: keywords},
		Sparse: embedding.NewBM25(sparseCfg),
		LLM:    scriptedLLM{reply: "scripted answer", usage: llm.Usage{InputTokens: 8, OutputTokens: 4, TotalTokens: 12}},
	})
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return NewDispatcher(newTestService(t), NewTracer(NopSink{}, nil, "test"))
}
