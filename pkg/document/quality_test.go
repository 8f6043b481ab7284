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
	"testing"
)

func TestCheckQualityEmpty(t *testing.T) {
	report := CheckQuality(nil)
	if report.OverallScore != 0 {
		t.Errorf("empty input should score 0, got %f", report.OverallScore)
	}
	if len(report.Issues) != 1 || report.Issues[0] != "No content" {
		t.Errorf("expected the no-content issue, got %v", report.Issues)
	}
}

func TestCheckQualityCleanDocument(t *testing.T) {
	// Two headers, prose with mid-length words, well over 800 chars:
	// every dimension lands at 1.0.
	body := strings.Repeat("intact wording flowing nicely onward ", 25)
	page := "## Title\n## Section\n" + body

	report := CheckQuality([]string{page})
	if math.Abs(report.OverallScore-1.0) > 1e-9 {
		t.Errorf("expected perfect score, got %f (report %+v)", report.OverallScore, report)
	}
	if len(report.Issues) != 0 {
		t.Errorf("no issues expected, got %v", report.Issues)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "Excellent quality" {
		t.Errorf("expected excellent recommendation, got %v", report.Recommendations)
	}
}

func TestCheckQualityLowScore(t *testing.T) {
	report := CheckQuality([]string{"ab"})
	if report.OverallScore >= 0.70 {
		t.Fatalf("tiny page should score below 0.70, got %f", report.OverallScore)
	}
	if len(report.Issues) != 1 || report.Issues[0] != "Low quality score" {
		t.Errorf("expected low-quality issue, got %v", report.Issues)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "Consider re-extraction" {
		t.Errorf("expected re-extraction recommendation, got %v", report.Recommendations)
	}
}

func TestCheckQualityWeights(t *testing.T) {
	report := CheckQuality([]string{"## Header\nsome ordinary page text that goes on for a while here"})
	want := report.TextQuality*0.25 +
		report.WordQuality*0.20 +
		report.Consistency*0.15 +
		report.StructureQuality*0.20 +
		report.ContentDensity*0.20
	if math.Abs(report.OverallScore-want) > 1e-9 {
		t.Errorf("overall %f does not match weighted sum %f", report.OverallScore, want)
	}
}

func TestCheckQualityConsistencyPenalizesVariance(t *testing.T) {
	even := CheckQuality([]string{strings.Repeat("a", 500), strings.Repeat("b", 500)})
	uneven := CheckQuality([]string{strings.Repeat("a", 950), strings.Repeat("b", 50)})
	if even.Consistency <= uneven.Consistency {
		t.Errorf("even pages should be more consistent: %f vs %f", even.Consistency, uneven.Consistency)
	}
	if math.Abs(even.Consistency-1.0) > 1e-9 {
		t.Errorf("identical page lengths should score 1.0, got %f", even.Consistency)
	}
}

func TestCheckQualityDensityBands(t *testing.T) {
	cases := []struct {
		chars int
		want  float64
	}{
		{900, 1.0},
		{500, 0.8},
		{250, 0.6},
		{100, 0.4},
	}
	for _, tc := range cases {
		report := CheckQuality([]string{strings.Repeat("a", tc.chars)})
		if report.ContentDensity != tc.want {
			t.Errorf("%d chars: density %f, want %f", tc.chars, report.ContentDensity, tc.want)
		}
	}
}

func TestCheckQualityCountsDetails(t *testing.T) {
	report := CheckQuality([]string{"one two three", "four five"})
	if report.Pages != 2 {
		t.Errorf("pages: got %d", report.Pages)
	}
	if report.Words != 5 {
		t.Errorf("words: got %d", report.Words)
	}
}
