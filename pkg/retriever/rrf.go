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
	"sort"

	"github.com/ragforge/mcprag/pkg/vector"
)

// fuse merges two ranked lists with reciprocal rank fusion: each list
// contributes 1/(k+rank) with 1-based ranks. When both lists carry a
// point, the dense payload wins. The stable sort over dense-first
// insertion order makes ties deterministic.
func fuse(dense, sparse []vector.ScoredPoint, k int) []Result {
	if k <= 0 {
		k = 60
	}

	order := make([]string, 0, len(dense)+len(sparse))
	scores := make(map[string]float64, len(dense)+len(sparse))
	payloads := make(map[string]map[string]any, len(dense)+len(sparse))

	add := func(hits []vector.ScoredPoint) {
		for i, hit := range hits {
			if _, seen := scores[hit.ID]; !seen {
				order = append(order, hit.ID)
				payloads[hit.ID] = hit.Payload
			}
			scores[hit.ID] += 1.0 / float64(k+i+1)
		}
	}
	add(dense)
	add(sparse)

	out := make([]Result, len(order))
	for i, id := range order {
		out[i] = Result{ID: id, Score: scores[id], Payload: payloads[id]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
