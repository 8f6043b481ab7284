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

package document

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ragforge/mcprag/pkg/llm"
)

// metadataPrompt asks for a strict JSON object. The corpus is largely
// Thai government documents, so the instruction language matches.
const metadataPrompt = `คุณคือผู้ช่วยในการวิเคราะห์เอกสาร กรุณาอ่านเนื้อหาต่อไปนี้และสกัดข้อมูล metadata ออกมาในรูปแบบ JSON:

เนื้อหาเอกสาร:
{text}

กรุณาส่งคืนเฉพาะ JSON object ที่มีฟิลด์เหล่านี้:
- doc_type: ประเภทของเอกสาร (เช่น "law", "regulation", "guideline", "policy", "report", "other")
- category: หมวดหมู่เอกสาร (เช่น "firearms", "contracts", "hr", "finance", "general")
- status: สถานะเอกสาร (เช่น "active", "draft", "archived", "unknown")
- title: ชื่อเอกสาร (สกัดจากเนื้อหา หรือใช้ "Untitled" ถ้าไม่พบ)

ตัวอย่างผลลัพธ์:
{"doc_type": "law", "category": "firearms", "status": "active", "title": "พระราชบัญญัติอาวุธปืน"}

JSON:`

const (
	metadataMaxChars  = 3000
	metadataMaxTokens = 300
	metadataTemp      = 0.3
	titleMaxChars     = 100
)

// Metadata classifies a document for filtering and display.
type Metadata struct {
	DocType  string `json:"doc_type"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Title    string `json:"title"`
}

// MetadataExtractor asks the LLM to classify a document head. Every
// failure path degrades to keyword heuristics, so extraction never
// blocks an upload.
type MetadataExtractor struct {
	provider llm.Provider
}

// NewMetadataExtractor accepts a nil provider; heuristics then handle
// everything.
func NewMetadataExtractor(provider llm.Provider) *MetadataExtractor {
	return &MetadataExtractor{provider: provider}
}

func (e *MetadataExtractor) Extract(ctx context.Context, text string) *Metadata {
	if runes := []rune(text); len(runes) > metadataMaxChars {
		text = string(runes[:metadataMaxChars]) + "..."
	}

	if e.provider == nil {
		return heuristicMetadata(text)
	}

	temp := metadataTemp
	resp, err := e.provider.Generate(ctx, llm.Request{
		Prompt:      strings.Replace(metadataPrompt, "{text}", text, 1),
		Temperature: &temp,
		MaxTokens:   metadataMaxTokens,
	})
	if err != nil {
		slog.Warn("metadata extraction failed, using heuristics", "error", err)
		return heuristicMetadata(text)
	}

	if meta := parseMetadataJSON(resp.Text); meta != nil {
		return meta
	}
	slog.Warn("metadata response was not parseable JSON, using heuristics")
	return heuristicMetadata(text)
}

// parseMetadataJSON tries a strict parse, then a fenced block, then the
// outermost braces.
func parseMetadataJSON(text string) *Metadata {
	text = strings.TrimSpace(text)

	if meta := tryUnmarshal(text); meta != nil {
		return meta
	}

	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			if meta := tryUnmarshal(strings.TrimSpace(rest[:end])); meta != nil {
				return meta
			}
		}
	}

	open := strings.Index(text, "{")
	close := strings.LastIndex(text, "}")
	if open >= 0 && close > open {
		if meta := tryUnmarshal(text[open : close+1]); meta != nil {
			return meta
		}
	}
	return nil
}

func tryUnmarshal(text string) *Metadata {
	var meta Metadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return nil
	}
	return &meta
}

var (
	categoryKeywords = []struct {
		category string
		words    []string
	}{
		{"firearms", []string{"ปืน", "อาวุธ", "firearm", "gun"}},
		{"contracts", []string{"สัญญา", "contract"}},
		{"hr", []string{"พนักงาน", "hr", "human resource"}},
		{"finance", []string{"การเงิน", "finance", "budget"}},
	}

	docTypeKeywords = []struct {
		docType string
		words   []string
	}{
		{"law", []string{"พระราชบัญญัติ", "พรบ", "law", "act"}},
		{"regulation", []string{"ระเบียบ", "regulation"}},
		{"guideline", []string{"แนวทาง", "guideline"}},
		{"policy", []string{"นโยบาย", "policy"}},
	}
)

func heuristicMetadata(text string) *Metadata {
	meta := &Metadata{
		DocType:  "other",
		Category: "general",
		Status:   "unknown",
		Title:    "Untitled",
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > titleMaxChars {
			line = string(runes[:titleMaxChars])
		}
		meta.Title = line
		break
	}

	lower := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		if containsAny(lower, entry.words) {
			meta.Category = entry.category
			break
		}
	}
	for _, entry := range docTypeKeywords {
		if containsAny(lower, entry.words) {
			meta.DocType = entry.docType
			break
		}
	}
	return meta
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
