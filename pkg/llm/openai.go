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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/httpclient"
	"github.com/ragforge/mcprag/pkg/observability"
	"github.com/ragforge/mcprag/pkg/utils"
)

// OpenAI talks to any OpenAI-compatible /chat/completions endpoint
// (OpenAI, OpenRouter, vLLM, Ollama in compatibility mode).
type OpenAI struct {
	cfg      *config.LLMConfig
	baseURL  string
	client   *httpclient.Client
	recorder observability.Recorder
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAI builds the provider. Retries and rate limit header parsing
// come from the shared HTTP client.
func NewOpenAI(cfg *config.LLMConfig, recorder observability.Recorder) *OpenAI {
	if recorder == nil {
		recorder = observability.NoopMetrics{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAI{
		cfg:     cfg,
		baseURL: baseURL,
		client: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		recorder: recorder,
	}
}

func (p *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	body := openAIRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: req.Prompt})

	headers := map[string]string{}
	if p.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.cfg.APIKey
	}

	var out openAIResponse
	err := p.client.PostJSON(ctx, p.baseURL+"/chat/completions", headers, body, &out)
	duration := time.Since(start)
	if err != nil {
		p.recorder.RecordLLMCall(p.cfg.Model, duration, 0, 0, err)
		if httpclient.IsRateLimited(err) {
			return nil, errs.E(errs.RateLimited, "llm.generate", "rate limited by provider", err)
		}
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			if msg := parseAPIError([]byte(se.Body)); msg != "" {
				return nil, errs.Ef(errs.Transient, "llm.generate", "provider error: %s", msg)
			}
		}
		return nil, errs.E(errs.Transient, "llm.generate", "chat completion request failed", err)
	}

	if out.Error != nil {
		apiErr := errs.Ef(errs.Transient, "llm.generate", "provider error: %s", out.Error.Message)
		p.recorder.RecordLLMCall(p.cfg.Model, duration, 0, 0, apiErr)
		return nil, apiErr
	}
	if len(out.Choices) == 0 {
		noChoice := errs.Ef(errs.Internal, "llm.generate", "no response choices returned")
		p.recorder.RecordLLMCall(p.cfg.Model, duration, 0, 0, noChoice)
		return nil, noChoice
	}

	usage := Usage{
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		TotalTokens:  out.Usage.TotalTokens,
	}
	// Some compatible backends (vLLM, older Ollama builds) omit usage;
	// count with the model's encoding so traces still carry real numbers.
	if usage.TotalTokens == 0 {
		if counter, err := utils.NewTokenCounter(p.cfg.Model); err == nil {
			usage.InputTokens = counter.Count(req.System) + counter.Count(req.Prompt)
			usage.OutputTokens = counter.Count(out.Choices[0].Message.Content)
			usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		}
	}

	p.recorder.RecordLLMCall(p.cfg.Model, duration, usage.InputTokens, usage.OutputTokens, nil)

	return &Response{
		Text:  out.Choices[0].Message.Content,
		Model: p.cfg.Model,
		Usage: usage,
	}, nil
}

func (p *OpenAI) Model() string { return p.cfg.Model }

func (p *OpenAI) Close() error { return nil }

// parseAPIError pulls the message out of an OpenAI-style error body.
func parseAPIError(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var wrapped struct {
		Error openAIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return ""
}

var _ Provider = (*OpenAI)(nil)
