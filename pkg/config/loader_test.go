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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
vector_store:
  host: qdrant.internal
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loader.Close()

	if cfg.Server.Port != 9000 {
		t.Errorf("explicit port lost: %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host default not applied: %q", cfg.Server.Host)
	}
	if cfg.VectorStore.Host != "qdrant.internal" {
		t.Errorf("vector store host lost: %q", cfg.VectorStore.Host)
	}
	if cfg.VectorStore.Port != 6334 {
		t.Errorf("vector store port default not applied: %d", cfg.VectorStore.Port)
	}
	if cfg.Search.TopK != 5 || cfg.Search.RRFK != 60 {
		t.Errorf("search defaults not applied: top_k=%d rrf_k=%d", cfg.Search.TopK, cfg.Search.RRFK)
	}
	if cfg.Document.ChunkSize != 1000 || cfg.Document.ChunkOverlap != 200 {
		t.Errorf("chunking defaults not applied: size=%d overlap=%d", cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
	}
	if cfg.Chat.MemoryTokenLimit != 3000 {
		t.Errorf("chat defaults not applied: %d", cfg.Chat.MemoryTokenLimit)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_QDRANT_KEY", "secret-key")

	path := writeConfig(t, `
vector_store:
  api_key: ${TEST_QDRANT_KEY}
llm:
  base_url: ${TEST_MISSING_URL:-https://openrouter.ai/api/v1}
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loader.Close()

	if cfg.VectorStore.APIKey != "secret-key" {
		t.Errorf("env var not expanded: %q", cfg.VectorStore.APIKey)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("default fallback not applied: %q", cfg.LLM.BaseURL)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
vector_store:
  timeout: 45s
progressive:
  per_page_timeout: 90s
`)

	cfg, loader, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loader.Close()

	if cfg.VectorStore.Timeout != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.VectorStore.Timeout)
	}
	if cfg.Progressive.PerPageTimeout != 90*time.Second {
		t.Errorf("per_page_timeout = %v, want 90s", cfg.Progressive.PerPageTimeout)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"overlap ge size", "document:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"bad llm provider", "llm:\n  provider: anthropic\n"},
		{"auth without jwks", "auth:\n  enabled: true\n  issuer: https://issuer\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeConfig(t, c.content)
			_, _, err := LoadFile(context.Background(), path)
			if err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config must validate: %v", err)
	}
	if got := cfg.Document.MaxFileSizeBytes(); got != 50*1024*1024 {
		t.Errorf("MaxFileSizeBytes = %d", got)
	}
	if cfg.Progressive.Tiers.Premium.CostPerPage != 0.0013 {
		t.Errorf("premium cost default = %v", cfg.Progressive.Tiers.Premium.CostPerPage)
	}
	if cfg.Progressive.Tiers.Fast.Threshold != 0.70 || cfg.Progressive.Tiers.Balanced.Threshold != 0.80 || cfg.Progressive.Tiers.Premium.Threshold != 0.85 {
		t.Error("tier threshold defaults wrong")
	}
}
