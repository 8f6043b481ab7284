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

package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
)

func testConfig(baseURL string) *config.RerankerConfig {
	cfg := &config.RerankerConfig{BaseURL: baseURL, Timeout: 5 * time.Second}
	cfg.SetDefaults()
	return cfg
}

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("path = %q, want /rerank", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "gun permit" {
			t.Errorf("query = %q", req.Query)
		}
		// TEI returns results sorted by score, not input order
		_ = json.NewEncoder(w).Encode([]rerankResult{
			{Index: 2, Score: 0.95},
			{Index: 0, Score: 0.40},
			{Index: 1, Score: 0.10},
		})
	}))
	defer srv.Close()

	scores, err := NewTEI(testConfig(srv.URL)).Score(context.Background(), "gun permit",
		[]string{"passage a", "passage b", "passage c"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []float32{0.40, 0.10, 0.95}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("scores[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestScoreEmptyTexts(t *testing.T) {
	scores, err := NewTEI(testConfig("http://unreachable.invalid")).Score(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Score(nil) error = %v", err)
	}
	if scores != nil {
		t.Errorf("Score(nil) = %v, want nil without a network call", scores)
	}
}

func TestScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.5}})
	}))
	defer srv.Close()

	_, err := NewTEI(testConfig(srv.URL)).Score(context.Background(), "q", []string{"a", "b"})
	if err == nil {
		t.Fatal("Score() expected error when server returns wrong count")
	}
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"query too long"}`))
	}))
	defer srv.Close()

	if _, err := NewTEI(testConfig(srv.URL)).Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("Score() expected error for 400 response")
	}
}
