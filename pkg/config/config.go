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

// Package config defines the service configuration tree.
//
// Configuration is loaded from YAML (JSON accepted), environment variables
// are expanded, defaults applied, and the result validated before the
// service starts. The tree is read once; changing it at runtime means
// rebuilding the service from a freshly loaded Config.
package config

import (
	"fmt"

	"github.com/ragforge/mcprag/pkg/observability"
)

// Config is the root of the configuration tree.
type Config struct {
	Server      ServerConfig      `yaml:"server,omitempty"`
	Auth        AuthConfig        `yaml:"auth,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	VectorStore VectorStoreConfig `yaml:"vector_store,omitempty"`
	Embedding   EmbeddingConfig   `yaml:"embedding,omitempty"`
	Reranker    RerankerConfig    `yaml:"reranker,omitempty"`
	LLM         LLMConfig         `yaml:"llm,omitempty"`
	Search      SearchConfig      `yaml:"search,omitempty"`
	Document    DocumentConfig    `yaml:"document,omitempty"`
	Extractor   ExtractorConfig   `yaml:"extractor,omitempty"`
	Chat        ChatConfig        `yaml:"chat,omitempty"`
	Progressive ProgressiveConfig `yaml:"progressive,omitempty"`
	TraceSink   TraceSinkConfig   `yaml:"trace_sink,omitempty"`

	// Observability is optional; nil leaves tracing and metrics disabled.
	Observability *observability.Config `yaml:"observability,omitempty"`
}

// SetDefaults applies defaults across the whole tree.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
	c.Logging.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Embedding.SetDefaults()
	c.Reranker.SetDefaults()
	c.LLM.SetDefaults()
	c.Search.SetDefaults()
	c.Document.SetDefaults()
	c.Extractor.SetDefaults()
	c.Chat.SetDefaults()
	c.Progressive.SetDefaults()
	c.TraceSink.SetDefaults()
	if c.Observability != nil {
		c.Observability.SetDefaults()
	}
}

// Validate checks the whole tree for errors.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"server", &c.Server},
		{"auth", &c.Auth},
		{"logging", &c.Logging},
		{"vector_store", &c.VectorStore},
		{"embedding", &c.Embedding},
		{"reranker", &c.Reranker},
		{"llm", &c.LLM},
		{"search", &c.Search},
		{"document", &c.Document},
		{"extractor", &c.Extractor},
		{"chat", &c.Chat},
		{"progressive", &c.Progressive},
		{"trace_sink", &c.TraceSink},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("observability: %w", err)
		}
	}
	return nil
}

// Default returns a fully defaulted configuration, suitable for tests and
// for running against local services without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
