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
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/errs"
	"github.com/ragforge/mcprag/pkg/observability"
)

// Gemini generates through the official SDK.
type Gemini struct {
	cfg      *config.LLMConfig
	client   *genai.Client
	recorder observability.Recorder
}

// NewGemini builds the provider and its SDK client.
func NewGemini(ctx context.Context, cfg *config.LLMConfig, recorder observability.Recorder) (*Gemini, error) {
	if recorder == nil {
		recorder = observability.NoopMetrics{}
	}
	if cfg.APIKey == "" {
		return nil, errs.Ef(errs.InvalidArgument, "llm.gemini", "gemini provider requires an api key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, errs.E(errs.Internal, "llm.gemini", "failed to create gemini client", err)
	}

	return &Gemini{cfg: cfg, client: client, recorder: recorder}, nil
}

func (p *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	temperature := p.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := p.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
			Role:  "user",
		}
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, genCfg)
	duration := time.Since(start)
	if err != nil {
		p.recorder.RecordLLMCall(p.cfg.Model, duration, 0, 0, err)
		if isQuotaError(err) {
			return nil, errs.E(errs.RateLimited, "llm.generate", "rate limited by provider", err)
		}
		return nil, errs.E(errs.Transient, "llm.generate", "gemini generation failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		empty := errs.Ef(errs.Internal, "llm.generate", "empty response from gemini")
		p.recorder.RecordLLMCall(p.cfg.Model, duration, 0, 0, empty)
		return nil, empty
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	p.recorder.RecordLLMCall(p.cfg.Model, duration, usage.InputTokens, usage.OutputTokens, nil)

	return &Response{Text: sb.String(), Model: p.cfg.Model, Usage: usage}, nil
}

func (p *Gemini) Model() string { return p.cfg.Model }

func (p *Gemini) Close() error { return nil }

// isQuotaError detects rate limiting across the SDK's error shapes.
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit")
}

var _ Provider = (*Gemini)(nil)
