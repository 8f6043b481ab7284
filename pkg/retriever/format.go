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

package retriever

import (
	"fmt"
	"strings"

	"github.com/ragforge/mcprag/pkg/vector"
)

// FormatContext renders results as numbered, source-attributed blocks
// ready to drop into an LLM prompt. Absent metadata fields are simply
// omitted from the attribution line.
func FormatContext(results []Result, includeMetadata bool) string {
	if len(results) == 0 {
		return "No relevant information found."
	}

	blocks := make([]string, 0, len(results))
	for i, result := range results {
		content := vector.PayloadString(result.Payload, "text")

		var header string
		if includeMetadata {
			source := vector.PayloadString(result.Payload, "filename")
			if source == "" {
				source = "Unknown"
			}
			var b strings.Builder
			fmt.Fprintf(&b, "[%d] (Source: %s", i+1, source)
			if page := vector.PayloadInt(result.Payload, "page"); page > 0 {
				fmt.Fprintf(&b, ", Page %d", page)
			}
			if section := vector.PayloadString(result.Payload, "section"); section != "" {
				fmt.Fprintf(&b, ", Section: %s", section)
			}
			fmt.Fprintf(&b, ", Relevance: %.2f)", result.Score)
			header = b.String()
		} else {
			header = fmt.Sprintf("[%d] (Relevance: %.2f)", i+1, result.Score)
		}

		blocks = append(blocks, header+"\n"+content+"\n")
	}

	return fmt.Sprintf("Retrieved Context (%d relevant passages):\n\n%s",
		len(results), strings.Join(blocks, "\n"))
}

// SourceSummary counts retained chunks per source file, in first-seen
// order.
type SourceSummary struct {
	SourceFile string `json:"source_file"`
	ChunkCount int    `json:"chunk_count"`
}

// SummarizeSources builds the per-file summary for a result set.
func SummarizeSources(results []Result) []SourceSummary {
	order := make([]string, 0)
	counts := make(map[string]int)
	for _, result := range results {
		source := vector.PayloadString(result.Payload, "filename")
		if source == "" {
			source = "Unknown"
		}
		if _, ok := counts[source]; !ok {
			order = append(order, source)
		}
		counts[source]++
	}

	out := make([]SourceSummary, len(order))
	for i, source := range order {
		out[i] = SourceSummary{SourceFile: source, ChunkCount: counts[source]}
	}
	return out
}
