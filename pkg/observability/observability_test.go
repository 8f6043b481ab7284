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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Tracing.Exporter != "otlp" {
		t.Errorf("exporter default = %q", cfg.Tracing.Exporter)
	}
	if cfg.Tracing.SamplingRate != 1.0 {
		t.Errorf("sampling rate default = %v", cfg.Tracing.SamplingRate)
	}
	if cfg.Metrics.Endpoint != "/metrics" {
		t.Errorf("metrics endpoint default = %q", cfg.Metrics.Endpoint)
	}
	if cfg.Metrics.Namespace != "mcprag" {
		t.Errorf("namespace default = %q", cfg.Metrics.Namespace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config must validate: %v", err)
	}
}

func TestConfigValidateRejectsBadExporter(t *testing.T) {
	cfg := &Config{Tracing: TracingConfig{Enabled: true, Exporter: "jaeger", SamplingRate: 1.0}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestNoopMetricsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NoopMetrics{}.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestNoopManager(t *testing.T) {
	m := NoopManager()
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.MetricsEnabled() {
		t.Error("noop manager reports metrics enabled")
	}
	if m.Tracer() != nil {
		t.Error("noop manager returned a tracer")
	}
	// Recording through the noop recorder must not panic.
	m.Metrics().RecordToolCall("search", true, time.Millisecond, 0)
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestMetricsScrape(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "mcprag"})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.RecordToolCall("upload_document", true, 120*time.Millisecond, 0.0026)
	m.RecordHTTPRequest(http.MethodPost, "/mcp", 200, 10*time.Millisecond, 512)
	m.RecordSearch("legal_docs", 30*time.Millisecond, 5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "mcprag_tool_calls_total") {
		t.Errorf("tool call counter missing from scrape:\n%s", body[:min(len(body), 500)])
	}
	if !strings.Contains(body, "mcprag_http_requests_total") {
		t.Error("http request counter missing from scrape")
	}
}

func TestHTTPMiddlewareRecords(t *testing.T) {
	captured := &captureRecorder{}
	handler := HTTPMiddleware(nil, captured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/create_kb", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if captured.status != http.StatusCreated {
		t.Errorf("recorded status = %d", captured.status)
	}
	if captured.route != "/tools/create_kb" {
		t.Errorf("recorded route = %q", captured.route)
	}
	if captured.respSize != 2 {
		t.Errorf("recorded response size = %d", captured.respSize)
	}
}

type captureRecorder struct {
	NoopMetrics
	route    string
	status   int
	respSize int64
}

func (c *captureRecorder) RecordHTTPRequest(method, route string, status int, duration time.Duration, respSize int64) {
	c.route = route
	c.status = status
	c.respSize = respSize
}
