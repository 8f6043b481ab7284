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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records service metrics via the OpenTelemetry SDK and exposes
// them in Prometheus format on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
	toolCost     metric.Float64Counter

	llmRequests metric.Int64Counter
	llmTokens   metric.Int64Counter

	searches       metric.Int64Counter
	searchResults  metric.Int64Counter
	searchDuration metric.Float64Histogram
}

// NewMetrics builds the meter provider, instruments, and registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(DefaultServiceName)

	m := &Metrics{registry: registry, provider: provider}

	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests by method, route, and status")); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds")); err != nil {
		return nil, err
	}
	if m.toolCalls, err = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Tool invocations by tool and outcome")); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram("tool_call_duration_seconds",
		metric.WithDescription("Tool call duration in seconds")); err != nil {
		return nil, err
	}
	if m.toolCost, err = meter.Float64Counter("tool_cost_usd_total",
		metric.WithDescription("Accumulated extraction cost in USD")); err != nil {
		return nil, err
	}
	if m.llmRequests, err = meter.Int64Counter("llm_requests_total",
		metric.WithDescription("LLM requests by model and outcome")); err != nil {
		return nil, err
	}
	if m.llmTokens, err = meter.Int64Counter("llm_tokens_total",
		metric.WithDescription("LLM tokens by model and direction")); err != nil {
		return nil, err
	}
	if m.searches, err = meter.Int64Counter("searches_total",
		metric.WithDescription("Retrieval searches by KB")); err != nil {
		return nil, err
	}
	if m.searchResults, err = meter.Int64Counter("search_results_total",
		metric.WithDescription("Passages returned by retrieval searches")); err != nil {
		return nil, err
	}
	if m.searchDuration, err = meter.Float64Histogram("search_duration_seconds",
		metric.WithDescription("Retrieval search duration in seconds")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolCall records one dispatched tool invocation.
func (m *Metrics) RecordToolCall(tool string, success bool, duration time.Duration, costUSD float64) {
	if m == nil {
		return
	}
	ctx := context.Background()
	outcome := "success"
	if !success {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
	if costUSD > 0 {
		m.toolCost.Add(ctx, costUSD, metric.WithAttributes(attribute.String("tool", tool)))
	}
}

// RecordLLMCall records one model invocation with token usage.
func (m *Metrics) RecordLLMCall(model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	))
	if inputTokens > 0 {
		m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "input"),
		))
	}
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("direction", "output"),
		))
	}
}

// RecordSearch records one retrieval search.
func (m *Metrics) RecordSearch(kb string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("kb", kb))
	m.searches.Add(ctx, 1, attrs)
	m.searchResults.Add(ctx, int64(results), attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return NoopMetrics{}.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
