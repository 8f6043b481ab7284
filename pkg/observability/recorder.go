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

package observability

import (
	"net/http"
	"time"
)

// Recorder is the metrics surface the rest of the service depends on.
// Injecting it keeps instrumented code testable without a registry.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration, respSize int64)
	RecordToolCall(tool string, success bool, duration time.Duration, costUSD float64)
	RecordLLMCall(model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordSearch(kb string, duration time.Duration, results int)
	Handler() http.Handler
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordHTTPRequest(string, string, int, time.Duration, int64) {}
func (NoopMetrics) RecordToolCall(string, bool, time.Duration, float64)         {}
func (NoopMetrics) RecordLLMCall(string, time.Duration, int, int, error)        {}
func (NoopMetrics) RecordSearch(string, time.Duration, int)                     {}

// Handler returns 503: scraping a disabled metrics endpoint is a
// deployment mistake worth surfacing.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
