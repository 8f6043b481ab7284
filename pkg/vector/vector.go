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

// Package vector is the storage layer. Collections carry a named dense
// vector ("dense", cosine) and a named sparse vector ("bm25", with
// server-side IDF), so hybrid retrieval runs two searches against the
// same points. The Qdrant adapter is the production store; the
// in-memory store mirrors its contract for tests and local runs.
package vector

import (
	"context"

	"github.com/ragforge/mcprag/pkg/embedding"
)

// Named vectors every collection is created with.
const (
	VectorDense  = "dense"
	VectorSparse = "bm25"
)

// Point is a stored chunk or descriptor. Sparse may be empty
// (descriptor points carry only the dense slot).
type Point struct {
	ID      string
	Dense   []float32
	Sparse  embedding.SparseVector
	Payload map[string]any
}

// Record is a point read back without a score.
type Record struct {
	ID      string
	Payload map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter is a conjunction of exact-match conditions on payload fields.
type Filter map[string]any

// SearchOptions tune a single search call.
type SearchOptions struct {
	Limit int

	// ScoreThreshold drops hits below it; zero disables.
	ScoreThreshold float32

	Filter Filter
}

// Store is the persistence contract. Implementations do not retry;
// callers own that policy.
type Store interface {
	EnsureCollection(ctx context.Context, name string, denseDim int) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	CollectionPointCount(ctx context.Context, name string) (uint64, error)

	Upsert(ctx context.Context, collection string, points []Point) error
	SearchDense(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]ScoredPoint, error)
	SearchSparse(ctx context.Context, collection string, sparse embedding.SparseVector, opts SearchOptions) ([]ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]Record, error)
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error

	HealthCheck(ctx context.Context) error
	Close() error
}
