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

package tool

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ragforge/mcprag/pkg/chat"
	"github.com/ragforge/mcprag/pkg/observability"
	"github.com/ragforge/mcprag/pkg/service"
)

// maxArgChars bounds how much of a string argument survives into a
// trace event.
const maxArgChars = 200

// Event is the record emitted to the trace sink, one per tool call.
type Event struct {
	RequestID     string           `json:"request_id"`
	ToolName      string           `json:"tool_name"`
	Arguments     map[string]any   `json:"arguments"`
	StartTS       time.Time        `json:"start_ts"`
	EndTS         time.Time        `json:"end_ts"`
	DurationMS    int64            `json:"duration_ms"`
	Success       bool             `json:"success"`
	Error         string           `json:"error,omitempty"`
	Model         string           `json:"model,omitempty"`
	Tokens        *chat.TokenUsage `json:"tokens,omitempty"`
	VLMCostUSD    float64          `json:"vlm_cost_usd,omitempty"`
	VLMPages      int              `json:"vlm_pages,omitempty"`
	ChunksCreated int              `json:"chunks_created,omitempty"`
	KBName        string           `json:"kb_name,omitempty"`
	Environment   string           `json:"environment,omitempty"`
}

// ToolStats aggregates the calls of one tool.
type ToolStats struct {
	TotalCalls      int     `json:"total_calls"`
	SuccessCount    int     `json:"success_count"`
	ErrorCount      int     `json:"error_count"`
	TotalDurationMS int64   `json:"total_duration_ms"`
	TotalCost       float64 `json:"total_cost"`
}

// StatsSummary rolls every tool up into one row.
type StatsSummary struct {
	TotalCalls    int     `json:"total_calls"`
	TotalCost     float64 `json:"total_cost"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Stats is a point-in-time snapshot of the tracer's counters.
type Stats struct {
	Tools   map[string]ToolStats `json:"tools"`
	Summary StatsSummary         `json:"summary"`
}

// Tracer records every tool invocation: a sanitized event goes to the
// sink, counters aggregate per tool, and the call is measured into the
// metrics recorder. All methods are safe for concurrent use.
type Tracer struct {
	mu    sync.Mutex
	tools map[string]*ToolStats

	sink    Sink
	metrics observability.Recorder
	env     string
}

// NewTracer wires a tracer to a sink and a metrics recorder. Nil
// arguments degrade to no-ops so callers never need conditionals.
func NewTracer(sink Sink, metrics observability.Recorder, environment string) *Tracer {
	if sink == nil {
		sink = NopSink{}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Tracer{
		tools:   make(map[string]*ToolStats),
		sink:    sink,
		metrics: metrics,
		env:     environment,
	}
}

// Trace is one in-flight tool call.
type Trace struct {
	tracer *Tracer
	start  time.Time
	ev     Event
}

// Start opens a trace for one call. Arguments are sanitized
// immediately, so the caller may mutate the map afterwards.
func (t *Tracer) Start(toolName string, args map[string]any) *Trace {
	now := time.Now()
	kbName, _ := args["kb_name"].(string)
	return &Trace{
		tracer: t,
		start:  now,
		ev: Event{
			RequestID:   uuid.NewString(),
			ToolName:    toolName,
			Arguments:   sanitizeArgs(args),
			StartTS:     now.UTC(),
			KBName:      kbName,
			Environment: t.env,
		},
	}
}

// End closes the trace, pulling the outcome fields (success, model,
// tokens, cost) out of the typed result before recording it.
func (tr *Trace) End(result any, err error) {
	end := time.Now()
	tr.ev.EndTS = end.UTC()
	tr.ev.DurationMS = end.Sub(tr.start).Milliseconds()
	tr.ev.Success = err == nil
	if err != nil {
		tr.ev.Error = err.Error()
	}

	switch r := result.(type) {
	case *service.Status:
		tr.ev.Success = r.Success && err == nil
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.CreateKBResult:
		tr.ev.Success = r.Success && err == nil
		if r.KBName != "" {
			tr.ev.KBName = r.KBName
		}
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.ListKBsResult:
		tr.ev.Success = r.Success && err == nil
	case *service.UploadResult:
		tr.ev.Success = r.Success && err == nil
		tr.ev.VLMCostUSD = r.VLMCost
		tr.ev.VLMPages = r.PagesProcessed
		tr.ev.ChunksCreated = r.ChunksCount
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.ListDocumentsResult:
		tr.ev.Success = r.Success && err == nil
		if r.KBName != "" {
			tr.ev.KBName = r.KBName
		}
	case *service.GetDocumentResult:
		tr.ev.Success = r.Success && err == nil
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.DeleteDocumentResult:
		tr.ev.Success = r.Success && err == nil
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.SearchResult:
		tr.ev.Success = r.Success && err == nil
		if r.KBName != "" {
			tr.ev.KBName = r.KBName
		}
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.ChatResult:
		tr.ev.Success = r.Success && err == nil
		tr.ev.Model = r.Model
		if r.Tokens.Total > 0 {
			usage := r.Tokens
			tr.ev.Tokens = &usage
		}
		if r.KBName != "" {
			tr.ev.KBName = r.KBName
		}
		if !r.Success {
			tr.noteFailure(r.Message)
		}
	case *service.HealthResult:
		tr.ev.Success = r.Healthy && err == nil
	}

	tr.tracer.record(tr.ev)
}

// noteFailure keeps the first failure message; a dispatch error
// already recorded takes precedence.
func (tr *Trace) noteFailure(message string) {
	if tr.ev.Error == "" {
		tr.ev.Error = message
	}
}

func (t *Tracer) record(ev Event) {
	t.mu.Lock()
	stats := t.tools[ev.ToolName]
	if stats == nil {
		stats = &ToolStats{}
		t.tools[ev.ToolName] = stats
	}
	stats.TotalCalls++
	if ev.Success {
		stats.SuccessCount++
	} else {
		stats.ErrorCount++
	}
	stats.TotalDurationMS += ev.DurationMS
	stats.TotalCost += ev.VLMCostUSD
	t.mu.Unlock()

	t.metrics.RecordToolCall(ev.ToolName, ev.Success, time.Duration(ev.DurationMS)*time.Millisecond, ev.VLMCostUSD)
	t.sink.Emit(ev)

	slog.Info("tool call",
		"tool", ev.ToolName,
		"request_id", ev.RequestID,
		"duration_ms", ev.DurationMS,
		"success", ev.Success)
}

// Stats snapshots the per-tool counters plus the rolled-up summary.
func (t *Tracer) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Stats{Tools: make(map[string]ToolStats, len(t.tools))}
	var totalDuration int64
	for name, stats := range t.tools {
		out.Tools[name] = *stats
		out.Summary.TotalCalls += stats.TotalCalls
		out.Summary.TotalCost += stats.TotalCost
		totalDuration += stats.TotalDurationMS
	}
	if out.Summary.TotalCalls > 0 {
		out.Summary.AvgDurationMS = float64(totalDuration) / float64(out.Summary.TotalCalls)
	}
	return out
}

// Close flushes and stops the sink.
func (t *Tracer) Close() { t.sink.Close() }

// sanitizeArgs copies the argument map with payloads elided, secrets
// redacted and long strings truncated, so trace events stay small and
// never leak credentials or document bodies.
func sanitizeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = sanitizeArg(k, v)
	}
	return out
}

func sanitizeArg(key string, v any) any {
	switch {
	case key == "file_content" || key == "content":
		if s, isStr := v.(string); isStr {
			return fmt.Sprintf("<%d bytes>", len(s))
		}
		return fmt.Sprintf("<%d bytes>", len(fmt.Sprint(v)))
	case strings.Contains(key, "api_key"),
		strings.Contains(key, "password"),
		strings.Contains(key, "secret"):
		return "<redacted>"
	}
	if s, isStr := v.(string); isStr && utf8.RuneCountInString(s) > maxArgChars {
		return string([]rune(s)[:maxArgChars]) + "..."
	}
	return v
}
