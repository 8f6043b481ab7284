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

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestTextHandlerSimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	h := &textHandler{
		next: slog.NewTextHandler(&buf, nil),
		w:    &buf,
	}

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "collection created", 0)
	rec.AddAttrs(slog.String("kb", "docs"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "INFO collection created") {
		t.Errorf("unexpected output prefix: %q", out)
	}
	if !strings.Contains(out, "kb=docs") {
		t.Errorf("attributes missing from output: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("color codes present without color enabled: %q", out)
	}
}

func TestTextHandlerVerboseIncludesTimestamp(t *testing.T) {
	var buf bytes.Buffer
	h := &textHandler{
		next:    slog.NewTextHandler(&buf, nil),
		w:       &buf,
		verbose: true,
	}

	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	rec := slog.NewRecord(ts, slog.LevelWarn, "slow query", 0)
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "2026/01/02 15:04:05 WARN slow query") {
		t.Errorf("unexpected verbose output: %q", out)
	}
}

func TestModuleFilterDropsForeignRecords(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	h := &moduleFilter{next: inner, minLevel: slog.LevelInfo}

	// A PC inside the standard library must be filtered at info level.
	foreignPC := reflect.ValueOf(strings.ToUpper).Pointer()
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "from elsewhere", foreignPC)
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("foreign record not filtered: %q", buf.String())
	}

	// A PC from this package must pass.
	pcs := make([]uintptr, 1)
	runtime.Callers(1, pcs)
	rec = slog.NewRecord(time.Now(), slog.LevelInfo, "from here", pcs[0])
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("record from this module was filtered")
	}
}

func TestModuleFilterDebugPassesEverything(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := &moduleFilter{next: inner, minLevel: slog.LevelDebug}

	foreignPC := reflect.ValueOf(strings.ToUpper).Pointer()
	rec := slog.NewRecord(time.Now(), slog.LevelDebug, "third-party detail", foreignPC)
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("debug level should not filter third-party records")
	}
}
