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
	"log/slog"

	"github.com/ragforge/mcprag/pkg/errs"
)

// CreateKBResult reports a KB creation.
type CreateKBResult struct {
	Status
	KBName string `json:"kb_name,omitempty"`
}

// KBSummary is one row of the KB listing.
type KBSummary struct {
	KBName        string `json:"kb_name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	DocumentCount int    `json:"document_count"`
	PointsCount   uint64 `json:"points_count"`
}

// ListKBsResult enumerates knowledge bases.
type ListKBsResult struct {
	Status
	KBs   []KBSummary `json:"kbs"`
	Total int         `json:"total"`
}

// CreateKB creates a collection sized to the live embedding dimension
// and registers the KB in the master index. A master index failure
// rolls the collection back so no half-created KB is visible to later
// calls.
func (s *Service) CreateKB(ctx context.Context, kbName, description, category string) *CreateKBResult {
	probe, err := s.dense.Embed(ctx, "test")
	if err != nil {
		return &CreateKBResult{Status: failure(fmt.Errorf("embedding probe failed: %w", err))}
	}

	if err := s.kbs.CreateCollection(ctx, kbName, description, len(probe)); err != nil {
		return &CreateKBResult{Status: failure(err)}
	}

	if err := s.router.EnsureMaster(ctx, len(probe)); err == nil {
		_, err = s.router.AddKB(ctx, kbName, description, category)
	}
	if err != nil {
		if derr := s.kbs.DeleteCollection(ctx, kbName); derr != nil {
			slog.Error("rollback after master index failure also failed",
				"kb", kbName, "error", derr)
		}
		return &CreateKBResult{Status: failure(err)}
	}

	slog.Info("created kb", "kb", kbName, "category", category)
	return &CreateKBResult{
		Status: ok("Knowledge base '%s' created successfully", kbName),
		KBName: kbName,
	}
}

// DeleteKB removes the collection and its master index entry. A
// missing master entry is not an error; the collection is
// authoritative.
func (s *Service) DeleteKB(ctx context.Context, kbName string) *Status {
	if err := s.kbs.DeleteCollection(ctx, kbName); err != nil {
		st := failure(err)
		return &st
	}

	if err := s.router.RemoveKB(ctx, kbName); err != nil && !errs.IsNotFound(err) {
		st := failure(err)
		return &st
	}

	slog.Info("deleted kb", "kb", kbName)
	st := ok("Knowledge base '%s' deleted successfully", kbName)
	return &st
}

// ListKBs enumerates collections (authoritative) enriched with master
// index descriptions and categories. A KB absent from the master index
// still lists, with the category defaulting to general.
func (s *Service) ListKBs(ctx context.Context) *ListKBsResult {
	infos, err := s.kbs.ListCollections(ctx)
	if err != nil {
		return &ListKBsResult{Status: failure(err), KBs: []KBSummary{}}
	}

	master := make(map[string]struct{ description, category string })
	if entries, err := s.router.ListKBs(ctx); err == nil {
		for _, e := range entries {
			master[e.KBName] = struct{ description, category string }{e.Description, e.Category}
		}
	} else if !errs.IsNotFound(err) {
		slog.Warn("master index unavailable for kb enrichment", "error", err)
	}

	kbs := make([]KBSummary, 0, len(infos))
	for _, info := range infos {
		summary := KBSummary{
			KBName:        info.Name,
			Description:   info.Description,
			Category:      "general",
			DocumentCount: info.DocumentCount,
			PointsCount:   info.PointCount,
		}
		if m, okm := master[info.Name]; okm {
			if summary.Description == "" {
				summary.Description = m.description
			}
			summary.Category = m.category
		}
		kbs = append(kbs, summary)
	}

	return &ListKBsResult{
		Status: Status{Success: true},
		KBs:    kbs,
		Total:  len(kbs),
	}
}
