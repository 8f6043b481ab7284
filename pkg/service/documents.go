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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/document"
	"github.com/ragforge/mcprag/pkg/extract"
	"github.com/ragforge/mcprag/pkg/kb"
	"github.com/ragforge/mcprag/pkg/vector"
)

const (
	// upsertBatchSize caps points per store write so one large
	// document never turns into a single oversized request.
	upsertBatchSize = 100

	// scrollPageSize bounds the scroll used to enumerate a
	// collection's chunk points.
	scrollPageSize = 10000
)

// UploadRequest carries one document into a knowledge base.
type UploadRequest struct {
	KBName   string
	Filename string
	Content  []byte
	// Metadata is merged into every chunk payload after the
	// automatic fields, so callers can override doc_type, category
	// and friends.
	Metadata map[string]any
}

// UploadResult reports an upload, including the extraction cost when
// the progressive ladder ran.
type UploadResult struct {
	Status
	ChunksCount    int            `json:"chunks_count,omitempty"`
	PointIDs       []string       `json:"point_ids,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	DocumentName   string         `json:"document_name,omitempty"`
	PagesProcessed int            `json:"pages_processed,omitempty"`
	VLMCost        float64        `json:"vlm_cost,omitempty"`
}

// UploadDocument extracts, chunks, embeds and stores one document.
// PDFs go through the progressive extraction ladder when it is
// configured; everything else uses the native parsers.
func (s *Service) UploadDocument(ctx context.Context, req UploadRequest) *UploadResult {
	exists, err := s.kbs.Exists(ctx, req.KBName)
	if err != nil {
		return &UploadResult{Status: failure(err)}
	}
	if !exists {
		return &UploadResult{Status: failuref("Knowledge base '%s' not found", req.KBName)}
	}
	if max := s.cfg.Document.MaxFileSizeBytes(); max > 0 && int64(len(req.Content)) > max {
		return &UploadResult{Status: failuref("File '%s' is %.1f MB, above the %d MB limit",
			req.Filename, float64(len(req.Content))/(1<<20), s.cfg.Document.MaxFileSizeMB)}
	}

	pages, extractionMeta, st := s.extractPages(ctx, req.Filename, req.Content)
	if st != nil {
		return &UploadResult{Status: *st}
	}
	if len(pages) == 0 {
		return &UploadResult{Status: failuref("Failed to extract text from document")}
	}

	chunks := s.docs.Chunk(pages)
	if len(chunks) == 0 {
		return &UploadResult{Status: failuref("Failed to chunk document")}
	}

	auto := s.metadata.Extract(ctx, chunks[0].Text)

	docMeta := map[string]any{
		"doc_type":    auto.DocType,
		"category":    auto.Category,
		"status":      auto.Status,
		"title":       auto.Title,
		"kb_name":     req.KBName,
		"filename":    req.Filename,
		"upload_date": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extractionMeta {
		docMeta[k] = v
	}
	for k, v := range req.Metadata {
		docMeta[k] = v
	}

	pointIDs, err := s.upsertChunks(ctx, kb.CollectionName(req.KBName), chunks, docMeta)
	if err != nil {
		return &UploadResult{Status: failure(err)}
	}

	return &UploadResult{
		Status:         ok("Document uploaded successfully: %d chunks", len(chunks)),
		ChunksCount:    len(chunks),
		PointIDs:       pointIDs,
		Metadata:       docMeta,
		DocumentName:   req.Filename,
		PagesProcessed: len(pages),
		VLMCost:        vector.PayloadFloat(extractionMeta, "extraction_cost"),
	}
}

// extractPages runs extraction under the concurrency gate. A non-nil
// Status is a user-facing failure; pages may still be empty on success
// when the file simply contains no text.
func (s *Service) extractPages(ctx context.Context, filename string, content []byte) ([]string, map[string]any, *Status) {
	if err := s.extractSem.Acquire(ctx, 1); err != nil {
		st := failure(err)
		return nil, nil, &st
	}
	defer s.extractSem.Release(1)

	// The progressive ladder handles PDFs and images. Text, markdown
	// and office files go straight to the native parsers.
	if s.progressive != nil && extract.LadderFile(filename) {
		startTier := extract.TierFast
		if extract.ImageFile(filename) {
			// No native image parser; escalation starts at the first
			// vision tier.
			startTier = extract.TierBalanced
		}
		result := s.progressive.ExtractWithSmartRouting(ctx,
			extract.File{Name: filename, Content: content},
			s.cfg.Progressive.TargetQuality,
			startTier,
			config.BoolValue(s.cfg.Progressive.AutoRetry, true))
		if !result.Success {
			st := failuref("Failed to extract text: %s", result.Error)
			return nil, nil, &st
		}
		meta := map[string]any{
			"tier_used":       result.TierUsed,
			"tiers_attempted": result.TiersAttempted,
			"quality_score":   result.QualityScore,
			"extraction_cost": result.Cost,
			"extraction_time": result.ExtractionTime.Seconds(),
		}
		return result.Pages, meta, nil
	}

	res, err := s.docs.Extract(ctx, filename, content)
	if err != nil {
		st := failure(err)
		return nil, nil, &st
	}
	return res.Pages, nil, nil
}

// upsertChunks embeds every chunk and writes the points in batches.
// The canonical fields (_type, text, page, chunk_index) are written
// after the document metadata so caller metadata cannot corrupt them.
func (s *Service) upsertChunks(ctx context.Context, collection string, chunks []document.Chunk, docMeta map[string]any) ([]string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.dense.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding document chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	pointIDs := make([]string, 0, len(chunks))
	batch := make([]vector.Point, 0, upsertBatchSize)
	for i, c := range chunks {
		payload := make(map[string]any, len(docMeta)+4)
		for k, v := range docMeta {
			payload[k] = v
		}
		payload[kb.FieldType] = kb.TypeDocument
		payload["text"] = c.Text
		payload["page"] = c.Page
		payload["chunk_index"] = c.Index

		id := uuid.NewString()
		pointIDs = append(pointIDs, id)
		batch = append(batch, vector.Point{
			ID:      id,
			Dense:   vectors[i],
			Sparse:  s.sparse.EncodeDocument(c.Text),
			Payload: payload,
		})
		if len(batch) == upsertBatchSize {
			if err := s.store.Upsert(ctx, collection, batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.store.Upsert(ctx, collection, batch); err != nil {
			return nil, err
		}
	}
	return pointIDs, nil
}

// DocumentSummary is one row of a document listing, aggregated from
// the file's chunk points.
type DocumentSummary struct {
	Filename     string   `json:"filename"`
	ChunksCount  int      `json:"chunks_count"`
	UploadDate   string   `json:"upload_date"`
	PointIDs     []string `json:"point_ids"`
	TierUsed     string   `json:"tier_used"`
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// ListDocumentsResult pages over the grouped documents of one KB.
type ListDocumentsResult struct {
	Status
	KBName    string            `json:"kb_name,omitempty"`
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ListDocuments groups a KB's chunk points by filename and returns one
// row per document, newest upload first.
func (s *Service) ListDocuments(ctx context.Context, kbName string, limit, offset int) *ListDocumentsResult {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	res := &ListDocumentsResult{
		KBName:    kbName,
		Documents: []DocumentSummary{},
		Limit:     limit,
		Offset:    offset,
	}

	exists, err := s.kbs.Exists(ctx, kbName)
	if err != nil {
		res.Status = failure(err)
		return res
	}
	if !exists {
		res.Status = failuref("Knowledge base '%s' not found", kbName)
		return res
	}

	records, err := s.store.Scroll(ctx, kb.CollectionName(kbName),
		vector.Filter{kb.FieldType: kb.TypeDocument}, scrollPageSize)
	if err != nil {
		res.Status = failure(err)
		return res
	}

	byFile := make(map[string]*DocumentSummary)
	order := make([]string, 0, len(byFile))
	for _, rec := range records {
		filename := vector.PayloadString(rec.Payload, "filename")
		if filename == "" {
			filename = "unknown"
		}
		doc, seen := byFile[filename]
		if !seen {
			doc = &DocumentSummary{
				Filename:     filename,
				UploadDate:   vector.PayloadString(rec.Payload, "upload_date"),
				PointIDs:     []string{},
				TierUsed:     "basic",
				QualityScore: payloadFloatPtr(rec.Payload, "quality_score"),
			}
			if tier := vector.PayloadString(rec.Payload, "tier_used"); tier != "" {
				doc.TierUsed = tier
			}
			byFile[filename] = doc
			order = append(order, filename)
		}
		doc.ChunksCount++
		doc.PointIDs = append(doc.PointIDs, rec.ID)
	}

	docs := make([]DocumentSummary, 0, len(order))
	for _, name := range order {
		docs = append(docs, *byFile[name])
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadDate > docs[j].UploadDate
	})

	res.Total = len(docs)
	start := offset
	if start > len(docs) {
		start = len(docs)
	}
	end := start + limit
	if end > len(docs) {
		end = len(docs)
	}
	res.Documents = docs[start:end]
	res.Success = true
	return res
}

// DocumentInfo summarizes one stored document from its first chunk's
// payload.
type DocumentInfo struct {
	Filename       string   `json:"filename"`
	KBName         string   `json:"kb_name"`
	ChunksCount    int      `json:"chunks_count"`
	UploadDate     string   `json:"upload_date"`
	TierUsed       string   `json:"tier_used"`
	QualityScore   *float64 `json:"quality_score,omitempty"`
	ExtractionCost *float64 `json:"extraction_cost,omitempty"`
	PointIDs       []string `json:"point_ids"`
}

// ChunkInfo is one chunk's content and position.
type ChunkInfo struct {
	ChunkIndex int    `json:"chunk_index"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
	PointID    string `json:"point_id"`
}

// GetDocumentResult carries the document summary and, on request, its
// chunks in reading order.
type GetDocumentResult struct {
	Status
	Document *DocumentInfo `json:"document,omitempty"`
	Chunks   []ChunkInfo   `json:"chunks,omitempty"`
}

// GetDocument returns one document's summary, optionally with every
// chunk sorted by chunk_index.
func (s *Service) GetDocument(ctx context.Context, kbName, filename string, includeChunks bool) *GetDocumentResult {
	exists, err := s.kbs.Exists(ctx, kbName)
	if err != nil {
		return &GetDocumentResult{Status: failure(err)}
	}
	if !exists {
		return &GetDocumentResult{Status: failuref("Knowledge base '%s' not found", kbName)}
	}

	records, err := s.store.Scroll(ctx, kb.CollectionName(kbName),
		vector.Filter{"filename": filename}, scrollPageSize)
	if err != nil {
		return &GetDocumentResult{Status: failure(err)}
	}
	if len(records) == 0 {
		return &GetDocumentResult{Status: failuref("Document '%s' not found in KB '%s'", filename, kbName)}
	}

	first := records[0].Payload
	info := &DocumentInfo{
		Filename:       filename,
		KBName:         kbName,
		ChunksCount:    len(records),
		UploadDate:     vector.PayloadString(first, "upload_date"),
		TierUsed:       "basic",
		QualityScore:   payloadFloatPtr(first, "quality_score"),
		ExtractionCost: payloadFloatPtr(first, "extraction_cost"),
		PointIDs:       make([]string, 0, len(records)),
	}
	if tier := vector.PayloadString(first, "tier_used"); tier != "" {
		info.TierUsed = tier
	}
	for _, rec := range records {
		info.PointIDs = append(info.PointIDs, rec.ID)
	}

	res := &GetDocumentResult{Status: Status{Success: true}, Document: info}
	if includeChunks {
		sorted := append([]vector.Record(nil), records...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return vector.PayloadInt(sorted[i].Payload, "chunk_index") <
				vector.PayloadInt(sorted[j].Payload, "chunk_index")
		})
		chunks := make([]ChunkInfo, 0, len(sorted))
		for _, rec := range sorted {
			page := vector.PayloadInt(rec.Payload, "page")
			if page == 0 {
				page = 1
			}
			chunks = append(chunks, ChunkInfo{
				ChunkIndex: vector.PayloadInt(rec.Payload, "chunk_index"),
				Page:       page,
				Text:       vector.PayloadString(rec.Payload, "text"),
				PointID:    rec.ID,
			})
		}
		res.Chunks = chunks
	}
	return res
}

// DeleteDocumentResult reports a single-document deletion.
type DeleteDocumentResult struct {
	Status
	KBName   string `json:"kb_name,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// DeleteDocument removes every chunk point belonging to a filename.
func (s *Service) DeleteDocument(ctx context.Context, kbName, filename string) *DeleteDocumentResult {
	exists, err := s.kbs.Exists(ctx, kbName)
	if err != nil {
		return &DeleteDocumentResult{Status: failure(err)}
	}
	if !exists {
		return &DeleteDocumentResult{Status: failuref("Knowledge base '%s' not found", kbName)}
	}

	collection := kb.CollectionName(kbName)
	probe, err := s.store.Scroll(ctx, collection, vector.Filter{"filename": filename}, 1)
	if err != nil {
		return &DeleteDocumentResult{Status: failure(err)}
	}
	if len(probe) == 0 {
		return &DeleteDocumentResult{Status: failuref("Document '%s' not found in KB '%s'", filename, kbName)}
	}

	if err := s.store.DeleteByFilter(ctx, collection, vector.Filter{"filename": filename}); err != nil {
		return &DeleteDocumentResult{Status: failure(err)}
	}
	return &DeleteDocumentResult{
		Status:   ok("Document '%s' deleted successfully", filename),
		KBName:   kbName,
		Filename: filename,
	}
}

// UpdateDocument replaces a document's chunks with freshly extracted
// content. A missing document is not an error; the upload proceeds.
func (s *Service) UpdateDocument(ctx context.Context, req UploadRequest) *UploadResult {
	del := s.DeleteDocument(ctx, req.KBName, req.Filename)
	if !del.Success && !strings.Contains(strings.ToLower(del.Message), "not found") {
		return &UploadResult{Status: del.Status}
	}

	res := s.UploadDocument(ctx, req)
	if res.Success {
		res.Message = fmt.Sprintf("Document '%s' updated successfully", req.Filename)
	}
	return res
}

func payloadFloatPtr(payload map[string]any, key string) *float64 {
	if _, present := payload[key]; !present {
		return nil
	}
	v := vector.PayloadFloat(payload, key)
	return &v
}
