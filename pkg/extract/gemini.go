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

package extract

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ragforge/mcprag/pkg/document"
	"github.com/ragforge/mcprag/pkg/errs"
)

const extractionPrompt = "Extract ALL text from this document image. Preserve structure (headers, tables, lists). Output clean markdown only."

// The total request deadline scales with page count but never exceeds
// this ceiling.
const maxVLMTimeout = 10 * time.Minute

// VLM extracts document text with a Gemini vision model. The document
// bytes travel inline with the prompt; the reply is markdown with
// per-page headers.
type VLM struct {
	client         *genai.Client
	perPageTimeout time.Duration
}

// NewVLM builds the client. perPageTimeout bounds each page's share of
// a request; zero means 60 seconds.
func NewVLM(ctx context.Context, apiKey string, perPageTimeout time.Duration) (*VLM, error) {
	if apiKey == "" {
		return nil, errs.Ef(errs.InvalidArgument, "extract.vlm", "vision tiers require an api key")
	}
	if perPageTimeout <= 0 {
		perPageTimeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, errs.E(errs.Internal, "extract.vlm", "failed to create gemini client", err)
	}
	return &VLM{client: client, perPageTimeout: perPageTimeout}, nil
}

// Extract sends the file to the model and splits the reply into page
// sections. Rate limiting surfaces as a RateLimited error so the
// progressive processor can fall back.
func (v *VLM) Extract(ctx context.Context, file File, model string) ([]string, error) {
	mime := vlmMIMEType(file.Name)
	if mime == "" {
		return nil, errs.Ef(errs.ExtractionFailed, "extract.vlm",
			"unsupported file type %s for vision extraction", filepath.Ext(file.Name))
	}

	pages := document.PageCount(file.Name, file.Content)
	timeout := v.perPageTimeout * time.Duration(pages)
	if timeout < v.perPageTimeout {
		timeout = v.perPageTimeout
	}
	if timeout > maxVLMTimeout {
		timeout = maxVLMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: extractionPrompt},
			{InlineData: &genai.Blob{MIMEType: mime, Data: file.Content}},
		},
	}}

	resp, err := v.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		if quotaExceeded(err) {
			return nil, errs.E(errs.RateLimited, "extract.vlm", "vision model rate limited", err)
		}
		return nil, errs.E(errs.Transient, "extract.vlm", "vision extraction failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errs.Ef(errs.ExtractionFailed, "extract.vlm", "vision model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	sections := splitReply(sb.String())
	if len(sections) == 0 {
		return nil, errs.Ef(errs.ExtractionFailed, "extract.vlm", "vision model returned no text")
	}
	return sections, nil
}

func vlmMIMEType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

var pageMarker = regexp.MustCompile(`(?m)^## Page \d+\s*$`)

// splitReply cuts the model's markdown at its page headers. Text before
// the first header stays with the first section; a reply without
// headers becomes a single page.
func splitReply(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := pageMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{"## Page 1\n\n" + text}
	}

	var sections []string
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = 0
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if section := strings.TrimSpace(text[start:end]); section != "" {
			sections = append(sections, section)
		}
	}
	return sections
}
