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

package vector

import (
	"context"
	"testing"

	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/errs"
)

func newTestStore(t *testing.T, collection string, dim int) *InMemory {
	t.Helper()
	store := NewInMemory()
	if err := store.EnsureCollection(context.Background(), collection, dim); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	return store
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 3)

	if err := store.EnsureCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("second EnsureCollection failed: %v", err)
	}

	exists, err := store.CollectionExists(ctx, "docs")
	if err != nil || !exists {
		t.Fatalf("expected collection to exist, got exists=%v err=%v", exists, err)
	}

	count, err := store.CollectionPointCount(ctx, "docs")
	if err != nil {
		t.Fatalf("CollectionPointCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty collection, got %d points", count)
	}
}

func TestUpsertAndDenseSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 2)

	points := []Point{
		{ID: "a", Dense: []float32{1, 0}, Payload: map[string]any{"text": "alpha"}},
		{ID: "b", Dense: []float32{0, 1}, Payload: map[string]any{"text": "beta"}},
		{ID: "c", Dense: []float32{0.9, 0.1}, Payload: map[string]any{"text": "gamma"}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.SearchDense(ctx, "docs", []float32{1, 0}, SearchOptions{Limit: 2})
	if err != nil {
		t.Fatalf("SearchDense failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "c" {
		t.Errorf("expected [a c], got [%s %s]", hits[0].ID, hits[1].ID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
	if hits[0].Payload["text"] != "alpha" {
		t.Errorf("payload not carried through: %v", hits[0].Payload)
	}
}

func TestDenseSearchScoreThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 2)

	points := []Point{
		{ID: "close", Dense: []float32{1, 0}, Payload: map[string]any{}},
		{ID: "far", Dense: []float32{0, 1}, Payload: map[string]any{}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.SearchDense(ctx, "docs", []float32{1, 0}, SearchOptions{Limit: 10, ScoreThreshold: 0.5})
	if err != nil {
		t.Fatalf("SearchDense failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "close" {
		t.Errorf("threshold should keep only the close point, got %v", hits)
	}
}

func TestDenseSearchFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 2)

	points := []Point{
		{ID: "a", Dense: []float32{1, 0}, Payload: map[string]any{"filename": "report.pdf", "chunk_index": 0}},
		{ID: "b", Dense: []float32{1, 0}, Payload: map[string]any{"filename": "other.pdf", "chunk_index": 0}},
		{ID: "c", Dense: []float32{1, 0}, Payload: map[string]any{"filename": "report.pdf", "chunk_index": 1}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.SearchDense(ctx, "docs", []float32{1, 0}, SearchOptions{
		Limit:  10,
		Filter: Filter{"filename": "report.pdf"},
	})
	if err != nil {
		t.Fatalf("SearchDense failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 filtered hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.Payload["filename"] != "report.pdf" {
			t.Errorf("filter leaked point %s with filename %v", h.ID, h.Payload["filename"])
		}
	}

	// Integer filter values match int64 payloads too.
	hits, err = store.SearchDense(ctx, "docs", []float32{1, 0}, SearchOptions{
		Limit:  10,
		Filter: Filter{"filename": "report.pdf", "chunk_index": int64(1)},
	})
	if err != nil {
		t.Fatalf("SearchDense failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "c" {
		t.Errorf("conjunctive filter expected only c, got %v", hits)
	}
}

func TestDenseSearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 2)

	same := []float32{0.6, 0.8}
	points := []Point{
		{ID: "first", Dense: same, Payload: map[string]any{}},
		{ID: "second", Dense: same, Payload: map[string]any{}},
		{ID: "third", Dense: same, Payload: map[string]any{}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.SearchDense(ctx, "docs", same, SearchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("SearchDense failed: %v", err)
	}
	got := []string{hits[0].ID, hits[1].ID, hits[2].ID}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("equal scores should keep insertion order, got %v", got)
		}
	}
}

func TestSparseSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 2)

	points := []Point{
		{
			ID:    "match",
			Dense: []float32{1, 0},
			Sparse: embedding.SparseVector{
				Indices: []uint32{5, 9},
				Values:  []float32{1.2, 0.4},
			},
			Payload: map[string]any{},
		},
		{
			ID:    "partial",
			Dense: []float32{0, 1},
			Sparse: embedding.SparseVector{
				Indices: []uint32{9, 20},
				Values:  []float32{0.3, 2.0},
			},
			Payload: map[string]any{},
		},
		{
			// Descriptor-style point with no sparse slot.
			ID:      "dense-only",
			Dense:   []float32{1, 1},
			Payload: map[string]any{},
		},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	query := embedding.SparseVector{Indices: []uint32{5, 9}, Values: []float32{1.0, 1.0}}
	hits, err := store.SearchSparse(ctx, "docs", query, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchSparse failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 sparse hits, got %d", len(hits))
	}
	if hits[0].ID != "match" || hits[1].ID != "partial" {
		t.Errorf("expected [match partial], got [%s %s]", hits[0].ID, hits[1].ID)
	}

	// Empty query vector searches nothing.
	hits, err = store.SearchSparse(ctx, "docs", embedding.SparseVector{}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchSparse with empty query failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty sparse query should return nothing, got %d hits", len(hits))
	}
}

func TestScrollOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 1)

	points := []Point{
		{ID: "p0", Dense: []float32{0}, Payload: map[string]any{"_type": "document", "chunk_index": 0}},
		{ID: "meta", Dense: []float32{0}, Payload: map[string]any{"_type": "collection_metadata"}},
		{ID: "p1", Dense: []float32{0}, Payload: map[string]any{"_type": "document", "chunk_index": 1}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := store.Scroll(ctx, "docs", Filter{"_type": "document"}, 100)
	if err != nil {
		t.Fatalf("Scroll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 document records, got %d", len(records))
	}
	if records[0].ID != "p0" || records[1].ID != "p1" {
		t.Errorf("scroll should keep insertion order, got [%s %s]", records[0].ID, records[1].ID)
	}

	limited, err := store.Scroll(ctx, "docs", nil, 1)
	if err != nil {
		t.Fatalf("Scroll failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "p0" {
		t.Errorf("limit should cut after the first record, got %v", limited)
	}
}

func TestDeleteByFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 1)

	points := []Point{
		{ID: "a0", Dense: []float32{0}, Payload: map[string]any{"filename": "a.pdf"}},
		{ID: "b0", Dense: []float32{0}, Payload: map[string]any{"filename": "b.pdf"}},
		{ID: "a1", Dense: []float32{0}, Payload: map[string]any{"filename": "a.pdf"}},
	}
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.DeleteByFilter(ctx, "docs", Filter{"filename": "a.pdf"}); err != nil {
		t.Fatalf("DeleteByFilter failed: %v", err)
	}

	count, err := store.CollectionPointCount(ctx, "docs")
	if err != nil {
		t.Fatalf("CollectionPointCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 surviving point, got %d", count)
	}

	records, err := store.Scroll(ctx, "docs", nil, 10)
	if err != nil {
		t.Fatalf("Scroll failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "b0" {
		t.Errorf("expected only b0 to survive, got %v", records)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 1)

	if err := store.Upsert(ctx, "docs", []Point{
		{ID: "a", Dense: []float32{0}, Payload: map[string]any{"version": 1}},
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "docs", []Point{
		{ID: "a", Dense: []float32{0}, Payload: map[string]any{"version": 2}},
	}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	count, _ := store.CollectionPointCount(ctx, "docs")
	if count != 1 {
		t.Fatalf("upsert with same ID should replace, got %d points", count)
	}
	records, _ := store.Scroll(ctx, "docs", nil, 10)
	if records[0].Payload["version"] != 2 {
		t.Errorf("expected replaced payload, got %v", records[0].Payload)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 3)

	err := store.Upsert(ctx, "docs", []Point{{ID: "bad", Dense: []float32{1, 2}}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !errs.Is(err, errs.InvalidArgument) {
		t.Errorf("expected invalid_argument kind, got %v", errs.KindOf(err))
	}
}

func TestMissingCollectionErrors(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	if _, err := store.SearchDense(ctx, "nope", []float32{1}, SearchOptions{Limit: 1}); !errs.IsNotFound(err) {
		t.Errorf("SearchDense on missing collection: expected not_found, got %v", err)
	}
	if err := store.Upsert(ctx, "nope", []Point{{ID: "x", Dense: []float32{1}}}); !errs.IsNotFound(err) {
		t.Errorf("Upsert on missing collection: expected not_found, got %v", err)
	}
	if _, err := store.CollectionPointCount(ctx, "nope"); !errs.IsNotFound(err) {
		t.Errorf("CollectionPointCount on missing collection: expected not_found, got %v", err)
	}

	// Deleting a collection that never existed is not an error.
	if err := store.DeleteCollection(ctx, "nope"); err != nil {
		t.Errorf("DeleteCollection should be idempotent, got %v", err)
	}
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "docs", 1)

	if err := store.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("DeleteCollection failed: %v", err)
	}
	exists, _ := store.CollectionExists(ctx, "docs")
	if exists {
		t.Error("collection should be gone after delete")
	}

	names, _ := store.ListCollections(ctx)
	if len(names) != 0 {
		t.Errorf("expected no collections, got %v", names)
	}
}
