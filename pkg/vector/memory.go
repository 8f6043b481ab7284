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
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ragforge/mcprag/pkg/embedding"
	"github.com/ragforge/mcprag/pkg/errs"
)

// InMemory is a Store backed by process memory. It mirrors the adapter
// contract closely enough for local development and tests: named dense
// and sparse slots, exact-match filters, score thresholds, and stable
// insertion order for equal scores.
type InMemory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	denseDim int
	order    []string
	points   map[string]memPoint
}

type memPoint struct {
	dense   []float32
	sparse  embedding.SparseVector
	payload map[string]any
}

func NewInMemory() *InMemory {
	return &InMemory{collections: make(map[string]*memCollection)}
}

func (m *InMemory) EnsureCollection(_ context.Context, name string, denseDim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return nil
	}
	m.collections[name] = &memCollection{
		denseDim: denseDim,
		points:   make(map[string]memPoint),
	}
	return nil
}

func (m *InMemory) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *InMemory) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *InMemory) ListCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *InMemory) CollectionPointCount(_ context.Context, name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[name]
	if !ok {
		return 0, errs.E(errs.NotFound, "vector.count", fmt.Sprintf("collection %s does not exist", name), nil)
	}
	return uint64(len(coll.points)), nil
}

func (m *InMemory) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return errs.E(errs.NotFound, "vector.upsert", fmt.Sprintf("collection %s does not exist", collection), nil)
	}
	for _, p := range points {
		if len(p.Dense) != coll.denseDim {
			return errs.E(errs.InvalidArgument, "vector.upsert",
				fmt.Sprintf("dense vector has %d dimensions, collection expects %d", len(p.Dense), coll.denseDim), nil)
		}
		if _, exists := coll.points[p.ID]; !exists {
			coll.order = append(coll.order, p.ID)
		}
		coll.points[p.ID] = memPoint{dense: p.Dense, sparse: p.Sparse, payload: p.Payload}
	}
	return nil
}

func (m *InMemory) SearchDense(_ context.Context, collection string, vector []float32, opts SearchOptions) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, errs.E(errs.NotFound, "vector.search_dense", fmt.Sprintf("collection %s does not exist", collection), nil)
	}

	scored := make([]ScoredPoint, 0, len(coll.order))
	for _, id := range coll.order {
		p := coll.points[id]
		if !matchesFilter(p.payload, opts.Filter) {
			continue
		}
		score := cosineSimilarity(vector, p.dense)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		scored = append(scored, ScoredPoint{ID: id, Score: score, Payload: p.payload})
	}
	return rankAndTruncate(scored, opts.Limit), nil
}

func (m *InMemory) SearchSparse(_ context.Context, collection string, sparse embedding.SparseVector, opts SearchOptions) ([]ScoredPoint, error) {
	if sparse.IsEmpty() {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, errs.E(errs.NotFound, "vector.search_sparse", fmt.Sprintf("collection %s does not exist", collection), nil)
	}

	scored := make([]ScoredPoint, 0, len(coll.order))
	for _, id := range coll.order {
		p := coll.points[id]
		if p.sparse.IsEmpty() {
			continue
		}
		if !matchesFilter(p.payload, opts.Filter) {
			continue
		}
		score := sparseDot(sparse, p.sparse)
		if score <= 0 {
			continue
		}
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		scored = append(scored, ScoredPoint{ID: id, Score: score, Payload: p.payload})
	}
	return rankAndTruncate(scored, opts.Limit), nil
}

func (m *InMemory) Scroll(_ context.Context, collection string, filter Filter, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, errs.E(errs.NotFound, "vector.scroll", fmt.Sprintf("collection %s does not exist", collection), nil)
	}

	records := make([]Record, 0, limit)
	for _, id := range coll.order {
		if len(records) >= limit {
			break
		}
		p := coll.points[id]
		if !matchesFilter(p.payload, filter) {
			continue
		}
		records = append(records, Record{ID: id, Payload: p.payload})
	}
	return records, nil
}

func (m *InMemory) DeleteByFilter(_ context.Context, collection string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return errs.E(errs.NotFound, "vector.delete", fmt.Sprintf("collection %s does not exist", collection), nil)
	}

	kept := coll.order[:0]
	for _, id := range coll.order {
		if matchesFilter(coll.points[id].payload, filter) {
			delete(coll.points, id)
			continue
		}
		kept = append(kept, id)
	}
	coll.order = kept
	return nil
}

func (m *InMemory) HealthCheck(_ context.Context) error { return nil }

func (m *InMemory) Close() error { return nil }

func rankAndTruncate(scored []ScoredPoint, limit int) []ScoredPoint {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func matchesFilter(payload map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok || !looselyEqual(got, want) {
			return false
		}
	}
	return true
}

// looselyEqual compares across the integer widths that survive a trip
// through payload encoding.
func looselyEqual(a, b any) bool {
	if an, aok := asFloat(a); aok {
		bn, bok := asFloat(b)
		return bok && an == bn
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// sparseDot walks both index lists in one pass; indices are sorted
// ascending by construction.
func sparseDot(a, b embedding.SparseVector) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

var _ Store = (*InMemory)(nil)
