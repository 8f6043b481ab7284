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

// LLMConfig configures the answer-generating model.
//
// Example YAML:
//
//	llm:
//	  provider: openai
//	  base_url: https://openrouter.ai/api/v1
//	  api_key: ${OPENROUTER_API_KEY}
//	  model: google/gemini-2.0-flash-001
type LLMConfig struct {
	// Provider: "openai" (any OpenAI-compatible chat endpoint) or "gemini".
	Provider string `yaml:"provider,omitempty"`

	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "gemini":
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "gpt-4o-mini"
		}
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1500
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid llm provider %q (valid: openai, gemini)", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// ChatConfig tunes the conversation engine.
type ChatConfig struct {
	// MemoryTokenLimit caps estimated history tokens before old turns
	// are dropped.
	MemoryTokenLimit int `yaml:"memory_token_limit,omitempty"`

	// HistoryWindow is the number of recent turns included in prompts.
	HistoryWindow int `yaml:"history_window,omitempty"`

	// SystemPrompt prefixes every conversation.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// RewriteQueries enables history-aware query rewriting before
	// retrieval.
	RewriteQueries bool `yaml:"rewrite_queries,omitempty"`
}

func (c *ChatConfig) SetDefaults() {
	if c.MemoryTokenLimit <= 0 {
		c.MemoryTokenLimit = 3000
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = "You are a helpful assistant. Answer questions based on the provided context. " +
			"If the context does not contain the answer, say so instead of guessing."
	}
}

func (c *ChatConfig) Validate() error {
	if c.MemoryTokenLimit < 1 {
		return fmt.Errorf("memory_token_limit must be positive")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be positive")
	}
	return nil
}
