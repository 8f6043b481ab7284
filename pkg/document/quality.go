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

package document

import (
	"math"
	"strings"
	"unicode"
)

// Dimension weights; they sum to 1.0.
const (
	weightTextQuality      = 0.25
	weightWordQuality      = 0.20
	weightConsistency      = 0.15
	weightStructureQuality = 0.20
	weightContentDensity   = 0.20
)

// QualityReport scores an extraction across five dimensions. The
// progressive processor compares OverallScore against tier thresholds
// to decide whether to escalate.
type QualityReport struct {
	OverallScore     float64  `json:"overall_score"`
	TextQuality      float64  `json:"text_quality"`
	WordQuality      float64  `json:"word_quality"`
	Consistency      float64  `json:"consistency"`
	StructureQuality float64  `json:"structure_quality"`
	ContentDensity   float64  `json:"content_density"`
	Issues           []string `json:"issues,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	Pages            int      `json:"pages"`
	Chars            int      `json:"chars"`
	Words            int      `json:"words"`
}

// CheckQuality scores extracted pages without reference text.
func CheckQuality(pages []string) *QualityReport {
	if len(pages) == 0 {
		return &QualityReport{
			Issues:          []string{"No content"},
			Recommendations: []string{"Re-extract"},
		}
	}

	allText := strings.Join(pages, "\n")
	words := strings.Fields(allText)

	report := &QualityReport{
		TextQuality:      printableFraction(allText),
		WordQuality:      wordQuality(words),
		Consistency:      pageConsistency(pages),
		StructureQuality: structureQuality(allText, len(pages)),
		ContentDensity:   contentDensity(pages),
		Pages:            len(pages),
		Chars:            len(allText),
		Words:            len(words),
	}

	report.OverallScore = report.TextQuality*weightTextQuality +
		report.WordQuality*weightWordQuality +
		report.Consistency*weightConsistency +
		report.StructureQuality*weightStructureQuality +
		report.ContentDensity*weightContentDensity

	switch {
	case report.OverallScore >= 0.85:
		report.Recommendations = append(report.Recommendations, "Excellent quality")
	case report.OverallScore >= 0.70:
		report.Recommendations = append(report.Recommendations, "Good quality")
	default:
		report.Issues = append(report.Issues, "Low quality score")
		report.Recommendations = append(report.Recommendations, "Consider re-extraction")
	}
	return report
}

func printableFraction(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	printable, total := 0, 0
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

// Average token length inside [4,10] reads as natural prose; outside
// that band the extraction likely shattered or merged words.
func wordQuality(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += len([]rune(w))
	}
	avg := float64(total) / float64(len(words))
	if avg >= 4 && avg <= 10 {
		return 1.0
	}
	return 0.6
}

// pageConsistency is 1 minus the coefficient of variation of page
// lengths, clamped to [0,1].
func pageConsistency(pages []string) float64 {
	mean := 0.0
	for _, p := range pages {
		mean += float64(len(p))
	}
	mean /= float64(len(pages))
	if mean == 0 {
		return 0.5
	}

	variance := 0.0
	for _, p := range pages {
		d := float64(len(p)) - mean
		variance += d * d
	}
	variance /= float64(len(pages))

	cv := math.Sqrt(variance) / mean
	return math.Max(0, math.Min(1, 1-cv))
}

func structureQuality(text string, pages int) float64 {
	headers := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			headers++
		}
	}
	return math.Min(1.0, float64(headers)/float64(pages*2))
}

func contentDensity(pages []string) float64 {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	avg := float64(total) / float64(len(pages))
	switch {
	case avg >= 800:
		return 1.0
	case avg >= 400:
		return 0.8
	case avg >= 200:
		return 0.6
	default:
		return 0.4
	}
}
