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

package embedding

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/ragforge/mcprag/pkg/config"
)

// BM25Encoder produces sparse vectors with BM25-style term weights.
// Document vectors carry saturated term frequencies; query vectors
// carry raw counts. IDF is applied server-side by the vector store, so
// the encoder needs no corpus statistics beyond an average length.
type BM25Encoder struct {
	k1     float64
	b      float64
	avgLen float64
}

// NewBM25 builds an encoder from config.
func NewBM25(cfg *config.SparseEmbeddingConfig) *BM25Encoder {
	return &BM25Encoder{k1: cfg.K1, b: cfg.B, avgLen: cfg.AvgDocLen}
}

// EncodeDocument weights each term by tf*(k1+1) / (tf + k1*(1-b+b*dl/avgdl)).
func (e *BM25Encoder) EncodeDocument(text string) SparseVector {
	counts, docLen := termCounts(text)
	if docLen == 0 {
		return SparseVector{}
	}

	norm := e.k1 * (1 - e.b + e.b*float64(docLen)/e.avgLen)
	vec := SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for _, idx := range sortedIndices(counts) {
		tf := float64(counts[idx])
		vec.Indices = append(vec.Indices, idx)
		vec.Values = append(vec.Values, float32(tf*(e.k1+1)/(tf+norm)))
	}
	return vec
}

// EncodeQuery uses raw term frequencies; queries are short enough that
// saturation would only flatten them.
func (e *BM25Encoder) EncodeQuery(text string) SparseVector {
	counts, _ := termCounts(text)
	vec := SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for _, idx := range sortedIndices(counts) {
		vec.Indices = append(vec.Indices, idx)
		vec.Values = append(vec.Values, float32(counts[idx]))
	}
	return vec
}

// termCounts tokenizes and returns counts per hashed term plus the
// total token count. Tokens are lowercased runs of letters and digits,
// at least two runes long. Both sides of the index share this hasher,
// which is all that matters for matching.
func termCounts(text string) (map[uint32]int, int) {
	counts := make(map[uint32]int)
	total := 0
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(token)) < 2 {
			continue
		}
		counts[hashTerm(token)]++
		total++
	}
	return counts, total
}

func hashTerm(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func sortedIndices(counts map[uint32]int) []uint32 {
	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}
