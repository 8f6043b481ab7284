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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/llm"
	"github.com/ragforge/mcprag/pkg/service"
	"github.com/ragforge/mcprag/pkg/tool"
	"github.com/ragforge/mcprag/pkg/vector"
)

// keywordEmbedder maps each keyword to its own axis; the constant bias
// keeps vectors off zero so cosine similarity stays defined.
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

// offlineEmbedder simulates an embedding backend outage.
type offlineEmbedder struct{ keywordEmbedder }

func (offlineEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend offline")
}

// scriptedLLM answers every generation with a fixed reply.
type scriptedLLM struct{ reply string }

func (p scriptedLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{
		Text:  p.reply,
		Model: "scripted",
		Usage: llm.Usage{InputTokens: 8, OutputTokens: 4, TotalTokens: 12},
	}, nil
}

func (p scriptedLLM) Model() string { return "scripted" }
func (p scriptedLLM) Close() error  { return nil }

func newTestService(t *testing.T, dense embedding.Embedder) *service.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Reranker.Enabled = config.BoolPtr(false)

	sparseCfg := &config.SparseEmbeddingConfig{}
	sparseCfg.SetDefaults()

	return service.New(cfg, service.Deps{
		Store:  vector.NewInMemory(),
		Dense:  dense,
		Sparse: embedding.NewBM25(sparseCfg),
		LLM:    scriptedLLM{reply: "scripted answer"},
	})
}

// newTestServer serves the full route tree over httptest, backed by the
// in-memory store. The mutate hook runs before the server is built so
// tests can enable auth or flip server settings.
func newTestServer(t *testing.T, dense embedding.Embedder, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg, tool.NewDispatcher(newTestService(t, dense), nil), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func defaultEmbedder() keywordEmbedder {
	return keywordEmbedder{keywords: []string{"permit", "invoice"}}
}

// call sends one JSON request and decodes the JSON object it gets
// back. Every endpoint answers a JSON object, errors included.
func call(t *testing.T, ts *httptest.Server, method, path string, body map[string]any) (int, map[string]any) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, payload)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func seedKB(t *testing.T, ts *httptest.Server, name, description string) {
	t.Helper()
	status, body := call(t, ts, http.MethodPost, "/tools/create_kb", map[string]any{
		"kb_name":     name,
		"description": description,
	})
	require.Equal(t, http.StatusCreated, status, "create %s: %v", name, body)
}

func seedDocument(t *testing.T, ts *httptest.Server, kb, filename, text string) {
	t.Helper()
	status, body := call(t, ts, http.MethodPost, "/tools/upload_document", map[string]any{
		"kb_name":      kb,
		"filename":     filename,
		"file_content": base64.StdEncoding.EncodeToString([]byte(text)),
	})
	require.Equal(t, http.StatusOK, status, "upload %s: %v", filename, body)
}
