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
	"strings"
	"testing"
)

func TestFormatContextWithMetadata(t *testing.T) {
	results := []Result{
		{
			ID:    "r1",
			Score: 0.8234,
			Payload: map[string]any{
				"text":     "Gun permits require an application.",
				"filename": "law.pdf",
				"page":     3,
			},
		},
		{
			ID:    "r2",
			Score: 0.51,
			Payload: map[string]any{
				"text":     "Renewals happen every five years.",
				"filename": "law.pdf",
				"page":     7,
				"section":  "Renewals",
			},
		},
	}

	got := FormatContext(results, true)
	if !strings.HasPrefix(got, "Retrieved Context (2 relevant passages):\n\n") {
		t.Errorf("header: %q", got)
	}
	if !strings.Contains(got, "[1] (Source: law.pdf, Page 3, Relevance: 0.82)\nGun permits require an application.") {
		t.Errorf("first block missing: %q", got)
	}
	if !strings.Contains(got, "[2] (Source: law.pdf, Page 7, Section: Renewals, Relevance: 0.51)\nRenewals happen every five years.") {
		t.Errorf("second block missing: %q", got)
	}
}

func TestFormatContextOmitsAbsentFields(t *testing.T) {
	results := []Result{
		{ID: "r1", Score: 0.9, Payload: map[string]any{"text": "bare chunk"}},
	}
	got := FormatContext(results, true)
	if !strings.Contains(got, "[1] (Source: Unknown, Relevance: 0.90)\nbare chunk") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "Page") || strings.Contains(got, "Section") {
		t.Errorf("absent fields should be omitted: %q", got)
	}
}

func TestFormatContextWithoutMetadata(t *testing.T) {
	results := []Result{
		{ID: "r1", Score: 0.75, Payload: map[string]any{"text": "content", "filename": "x.pdf"}},
	}
	got := FormatContext(results, false)
	if !strings.Contains(got, "[1] (Relevance: 0.75)\ncontent") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "x.pdf") {
		t.Errorf("metadata leaked: %q", got)
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := FormatContext(nil, true); got != "No relevant information found." {
		t.Errorf("got %q", got)
	}
}

func TestSummarizeSources(t *testing.T) {
	results := []Result{
		{Payload: map[string]any{"filename": "a.pdf"}},
		{Payload: map[string]any{"filename": "b.pdf"}},
		{Payload: map[string]any{"filename": "a.pdf"}},
		{Payload: map[string]any{}},
	}

	summary := SummarizeSources(results)
	if len(summary) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(summary))
	}
	if summary[0].SourceFile != "a.pdf" || summary[0].ChunkCount != 2 {
		t.Errorf("first source: %+v", summary[0])
	}
	if summary[1].SourceFile != "b.pdf" || summary[1].ChunkCount != 1 {
		t.Errorf("second source: %+v", summary[1])
	}
	if summary[2].SourceFile != "Unknown" || summary[2].ChunkCount != 1 {
		t.Errorf("third source: %+v", summary[2])
	}
}
