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

// Package embedding turns text into vectors: dense embeddings from an
// OpenAI-compatible model server, and sparse BM25 term-weight vectors
// computed locally.
package embedding

import "context"

// Embedder produces dense vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Close() error
}

// SparseVector pairs hashed term indices with their weights. Indices
// are sorted ascending.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// IsEmpty reports whether the vector carries no terms.
func (v SparseVector) IsEmpty() bool {
	return len(v.Indices) == 0
}
