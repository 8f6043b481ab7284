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

// Package llm provides text generation for answer synthesis, metadata
// extraction, and query rewriting. Two providers are supported: any
// OpenAI-compatible chat completion endpoint, and Gemini through the
// official SDK.
package llm

import (
	"context"
	"fmt"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/observability"
)

// Usage reports token consumption for a single generation.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request is a single-turn generation request. Zero-valued tuning
// fields fall back to the provider configuration.
type Request struct {
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Response carries the generated text and what it cost.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider generates text. Implementations are safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
	Close() error
}

// New builds the provider named by cfg.Provider. A nil recorder
// disables metrics.
func New(ctx context.Context, cfg *config.LLMConfig, recorder observability.Recorder) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, recorder), nil
	case "gemini":
		return NewGemini(ctx, cfg, recorder)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
