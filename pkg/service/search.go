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

package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ragforge/mcprag/pkg/kb"
	"github.com/ragforge/mcprag/pkg/retriever"
	"github.com/ragforge/mcprag/pkg/vector"
)

// SearchRequest targets one knowledge base. KBName is mandatory;
// callers that cannot name a KB should go through Chat with routing.
type SearchRequest struct {
	Query           string
	KBName          string
	TopK            int
	UseReranking    bool
	IncludeMetadata bool
	Deduplicate     bool
}

// SearchHit is one ranked passage.
type SearchHit struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Rank     int            `json:"rank"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult carries the ranked passages plus a pre-formatted
// context block so agent callers can prompt an LLM without any
// post-processing.
type SearchResult struct {
	Status
	KBName           string                    `json:"kb_name,omitempty"`
	Query            string                    `json:"query,omitempty"`
	TotalResults     int                       `json:"total_results"`
	Results          []SearchHit               `json:"results"`
	FormattedContext string                    `json:"formatted_context,omitempty"`
	MetadataSummary  []retriever.SourceSummary `json:"metadata_summary,omitempty"`
}

// Search runs hybrid retrieval over one KB's chunk points, optionally
// deduplicates near-identical passages, and formats the survivors for
// agent consumption.
func (s *Service) Search(ctx context.Context, req SearchRequest) *SearchResult {
	res := &SearchResult{Results: []SearchHit{}}
	if req.KBName == "" {
		res.Status = failuref("kb_name is required for search. Use auto_routing_chat for automatic KB selection.")
		return res
	}

	exists, err := s.kbs.Exists(ctx, req.KBName)
	if err != nil {
		res.Status = failure(err)
		return res
	}
	if !exists {
		res.Status = failuref("Knowledge base '%s' not found", req.KBName)
		return res
	}

	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, req.Query, kb.CollectionName(req.KBName), retriever.Options{
		TopK: req.TopK,
		// Descriptor points share the collection; only chunks are
		// searchable.
		Filter:       vector.Filter{kb.FieldType: kb.TypeDocument},
		UseReranking: req.UseReranking,
	})
	if err != nil {
		res.Status = failure(err)
		return res
	}

	if req.Deduplicate && len(results) > 0 {
		before := len(results)
		results = retriever.Deduplicate(results, s.cfg.Search.DedupThreshold)
		if len(results) < before {
			slog.Debug("deduplicated results",
				"kb", req.KBName, "before", before, "after", len(results))
		}
	}

	for i, result := range results {
		hit := SearchHit{
			Content:  vector.PayloadString(result.Payload, "text"),
			Score:    math.Round(result.Score*10000) / 10000,
			Rank:     i + 1,
			Metadata: map[string]any{},
		}
		if req.IncludeMetadata {
			hit.Metadata = hitMetadata(result.Payload)
		}
		res.Results = append(res.Results, hit)
	}

	res.Success = true
	res.KBName = req.KBName
	res.Query = req.Query
	res.TotalResults = len(res.Results)
	res.FormattedContext = retriever.FormatContext(results, req.IncludeMetadata)
	if req.IncludeMetadata {
		res.MetadataSummary = retriever.SummarizeSources(results)
	}

	s.metrics.RecordSearch(req.KBName, time.Since(start), len(res.Results))
	slog.Info("search complete",
		"kb", req.KBName, "results", len(res.Results),
		"rerank", req.UseReranking, "dedup", req.Deduplicate)
	return res
}

// hitMetadata projects the attribution fields out of a chunk payload,
// omitting whatever the chunk does not carry.
func hitMetadata(payload map[string]any) map[string]any {
	meta := make(map[string]any, 4)
	source := vector.PayloadString(payload, "filename")
	if source == "" {
		source = "Unknown"
	}
	meta["source_file"] = source
	if page := vector.PayloadInt(payload, "page"); page > 0 {
		meta["page"] = page
	}
	if section := vector.PayloadString(payload, "section"); section != "" {
		meta["section"] = section
	}
	if _, present := payload["chunk_index"]; present {
		meta["chunk_index"] = vector.PayloadInt(payload, "chunk_index")
	}
	return meta
}
