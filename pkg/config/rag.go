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
	"fmt"
	"time"
)

// VectorStoreConfig configures the Qdrant connection.
//
// Example YAML:
//
//	vector_store:
//	  host: qdrant.internal
//	  port: 6334
//	  api_key: ${QDRANT_API_KEY}
//	  use_tls: true
type VectorStoreConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	UseTLS bool   `yaml:"use_tls,omitempty"`

	// Timeout bounds every store call.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334 // gRPC port
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *VectorStoreConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// EmbeddingConfig groups dense and sparse embedding settings.
type EmbeddingConfig struct {
	Dense  DenseEmbeddingConfig  `yaml:"dense,omitempty"`
	Sparse SparseEmbeddingConfig `yaml:"sparse,omitempty"`
}

func (c *EmbeddingConfig) SetDefaults() {
	c.Dense.SetDefaults()
	c.Sparse.SetDefaults()
}

func (c *EmbeddingConfig) Validate() error {
	if err := c.Dense.Validate(); err != nil {
		return fmt.Errorf("dense: %w", err)
	}
	if err := c.Sparse.Validate(); err != nil {
		return fmt.Errorf("sparse: %w", err)
	}
	return nil
}

// DenseEmbeddingConfig configures the dense embedding endpoint.
//
// Any OpenAI-compatible /v1/embeddings server works, including TEI serving
// multilingual-e5 models.
type DenseEmbeddingConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`

	// Dimension must match the model output; collections are created with it.
	Dimension int `yaml:"dimension,omitempty"`

	BatchSize int           `yaml:"batch_size,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

func (c *DenseEmbeddingConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Model == "" {
		c.Model = "intfloat/multilingual-e5-large"
	}
	if c.Dimension <= 0 {
		c.Dimension = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *DenseEmbeddingConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	return nil
}

// SparseEmbeddingConfig configures the BM25-style sparse encoder.
//
// Document-side weights use the BM25 saturation formula; IDF is applied by
// the vector store at query time.
type SparseEmbeddingConfig struct {
	Model string `yaml:"model,omitempty"`

	K1        float64 `yaml:"k1,omitempty"`
	B         float64 `yaml:"b,omitempty"`
	AvgDocLen float64 `yaml:"avg_doc_len,omitempty"`
}

func (c *SparseEmbeddingConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "bm25"
	}
	if c.K1 <= 0 {
		c.K1 = 1.2
	}
	if c.B <= 0 {
		c.B = 0.75
	}
	if c.AvgDocLen <= 0 {
		c.AvgDocLen = 256
	}
}

func (c *SparseEmbeddingConfig) Validate() error {
	if c.B < 0 || c.B > 1 {
		return fmt.Errorf("b must be between 0 and 1")
	}
	return nil
}

// RerankerConfig configures the cross-encoder reranking endpoint
// (TEI-compatible /rerank).
type RerankerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (c *RerankerConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8081"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-reranker-v2-m3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *RerankerConfig) Validate() error {
	if BoolValue(c.Enabled, true) && c.BaseURL == "" {
		return fmt.Errorf("base_url is required when reranker is enabled")
	}
	return nil
}

// SearchConfig tunes hybrid retrieval and routing.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k,omitempty"`

	// SearchLimitMultiplier widens each per-field search to top_k times
	// this factor before fusion.
	SearchLimitMultiplier int `yaml:"search_limit_multiplier,omitempty"`

	// RRFK is the reciprocal-rank-fusion constant.
	RRFK int `yaml:"rrf_k,omitempty"`

	// RerankThreshold drops reranked results below this score.
	// Zero keeps everything.
	RerankThreshold float64 `yaml:"rerank_threshold,omitempty"`

	// RouteThreshold is the minimum master-index score for a KB to be
	// considered a routing candidate.
	RouteThreshold float64 `yaml:"route_threshold,omitempty"`

	// DedupThreshold is the character-set overlap ratio above which a
	// lower-ranked result is considered a duplicate.
	DedupThreshold float64 `yaml:"dedup_threshold,omitempty"`
}

func (c *SearchConfig) SetDefaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.SearchLimitMultiplier <= 0 {
		c.SearchLimitMultiplier = 2
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.RouteThreshold <= 0 {
		c.RouteThreshold = 0.5
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = 0.9
	}
}

func (c *SearchConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.SearchLimitMultiplier < 1 {
		return fmt.Errorf("search_limit_multiplier must be at least 1")
	}
	if c.RerankThreshold < 0 {
		return fmt.Errorf("rerank_threshold must be non-negative")
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("dedup_threshold must be in (0, 1]")
	}
	return nil
}
