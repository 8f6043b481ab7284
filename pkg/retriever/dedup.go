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
	"strings"

	"github.com/ragforge/mcprag/pkg/vector"
)

// Deduplicate walks results in rank order and drops any whose
// character set overlaps a kept result's set by threshold or more, so
// near-identical passages do not crowd the context. Results with empty
// text are dropped outright. Zero threshold means 0.9.
func Deduplicate(results []Result, threshold float64) []Result {
	if threshold <= 0 {
		threshold = 0.9
	}

	kept := make([]Result, 0, len(results))
	seen := make([]map[rune]struct{}, 0, len(results))

	for _, result := range results {
		text := strings.TrimSpace(strings.ToLower(vector.PayloadString(result.Payload, "text")))
		if text == "" {
			continue
		}
		set := runeSet(text)

		duplicate := false
		for _, other := range seen {
			if charOverlap(set, other) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, result)
			seen = append(seen, set)
		}
	}
	return kept
}

func runeSet(text string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(text))
	for _, r := range text {
		set[r] = struct{}{}
	}
	return set
}

// charOverlap is the intersection size over the larger set size.
func charOverlap(a, b map[rune]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = b, a
	}
	intersection := 0
	for r := range small {
		if _, ok := large[r]; ok {
			intersection++
		}
	}

	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(intersection) / float64(denom)
}
