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

// Package document turns uploaded files into cleaned, chunked Markdown.
//
// Extraction is routed by file extension: plain text is decoded directly,
// workbooks and slide decks go through the office extractor, everything
// else through the native document extractor. PDF and Word output is one
// section per page prefixed "## Page N" so downstream chunks keep their
// page provenance. The cleaner and quality checker run on every
// extraction before text reaches the chunker.
package document

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ragforge/mcprag/pkg/config"
)

// Chunk is one retrievable unit of a document. Index is monotone across
// the whole document; Page is the 1-based section the text came from.
type Chunk struct {
	Text  string `json:"text"`
	Page  int    `json:"page"`
	Index int    `json:"chunk_index"`
}

// ExtractResult carries cleaned sections and, when validation is
// enabled, the quality report for them.
type ExtractResult struct {
	Pages   []string
	Quality *QualityReport
}

// Processor routes extraction and applies cleaning and chunking policy
// from configuration.
type Processor struct {
	docCfg  *config.DocumentConfig
	extCfg  *config.ExtractorConfig
	cleaner *Cleaner
}

func NewProcessor(docCfg *config.DocumentConfig, extCfg *config.ExtractorConfig) *Processor {
	return &Processor{
		docCfg:  docCfg,
		extCfg:  extCfg,
		cleaner: NewCleaner(extCfg),
	}
}

// Extract decodes the file into cleaned Markdown sections.
func (p *Processor) Extract(ctx context.Context, filename string, content []byte) (*ExtractResult, error) {
	var (
		pages []string
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md":
		pages, err = extractPlainText(content)
	case ".xlsx", ".xls", ".pptx", ".ppt":
		pages, err = extractOffice(ctx, filename, content)
		if err != nil {
			// Office parsing is best-effort; the generic path may
			// still salvage something.
			pages, err = extractDocument(ctx, filename, content)
		}
	default:
		pages, err = extractDocument(ctx, filename, content)
	}
	if err != nil {
		return nil, err
	}

	pages = p.cleaner.CleanPages(pages)

	result := &ExtractResult{Pages: pages}
	if p.extCfg == nil || p.extCfg.ValidateQuality == nil || *p.extCfg.ValidateQuality {
		result.Quality = CheckQuality(pages)
	}
	return result, nil
}

// Chunk splits sections using the configured chunk size and overlap.
func (p *Processor) Chunk(pages []string) []Chunk {
	return ChunkPages(pages, p.docCfg.ChunkSize, p.docCfg.ChunkOverlap)
}

// ChunkWith splits sections with caller-supplied parameters; zero values
// fall back to the configured defaults.
func (p *Processor) ChunkWith(pages []string, size, overlap int) []Chunk {
	if size <= 0 {
		size = p.docCfg.ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = p.docCfg.ChunkOverlap
	}
	return ChunkPages(pages, size, overlap)
}
