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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
)

func sinkConfig(endpoint string, bufferSize int, flushInterval time.Duration) config.TraceSinkConfig {
	return config.TraceSinkConfig{
		Enabled:       true,
		Endpoint:      endpoint,
		APIKey:        "sink-key",
		Environment:   "test",
		BufferSize:    bufferSize,
		FlushInterval: flushInterval,
	}
}

func TestNewSinkSelection(t *testing.T) {
	if _, isNop := NewSink(config.TraceSinkConfig{}).(NopSink); !isNop {
		t.Error("disabled config should produce the no-op sink")
	}
	if _, isStdout := NewSink(sinkConfig("stdout", 4, time.Second)).(*stdoutSink); !isStdout {
		t.Error(`endpoint "stdout" should produce the JSONL sink`)
	}
	sink := NewSink(sinkConfig("http://localhost:1/traces", 4, time.Hour))
	if _, isHTTP := sink.(*httpSink); !isHTTP {
		t.Error("http endpoint should produce the batching sink")
	}
	sink.Close()
}

func TestStdoutSinkWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	sink := NewStdoutSink(&buf)
	sink.Emit(Event{RequestID: "r1", ToolName: NameHealth, Success: true})
	sink.Emit(Event{RequestID: "r2", ToolName: NameListKBs, Success: false, Error: "boom"})
	sink.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if ev.RequestID != "r1" || ev.ToolName != NameHealth {
		t.Errorf("decoded %+v", ev)
	}
}

func TestHTTPSinkDeliversBatch(t *testing.T) {
	type batch struct {
		Events []Event `json:"events"`
	}
	var (
		mu       sync.Mutex
		received []Event
		auth     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("bad batch body: %v", err)
		}
		mu.Lock()
		received = append(received, b.Events...)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewSink(sinkConfig(srv.URL, 16, time.Hour))
	sink.Emit(Event{RequestID: "r1", ToolName: NameSearch, KBName: "permits", Success: true})
	sink.Emit(Event{RequestID: "r2", ToolName: NameChat, Success: true})
	sink.Close() // long flush interval, so delivery happens on close

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("server received %d events, want 2", len(received))
	}
	if received[0].RequestID != "r1" || received[1].RequestID != "r2" {
		t.Errorf("events out of order: %+v", received)
	}
	if auth != "Bearer sink-key" {
		t.Errorf("authorization = %q", auth)
	}
}

func TestHTTPSinkDropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := newHTTPSink(sinkConfig(srv.URL, 2, 5*time.Millisecond))

	// The flusher blocks on the first POST; the tiny buffer must
	// overflow well before 500 emits.
	deadline := time.Now().Add(5 * time.Second)
	for sink.Dropped() == 0 && time.Now().Before(deadline) {
		for i := 0; i < 500; i++ {
			sink.Emit(Event{RequestID: "r", ToolName: NameHealth})
		}
		time.Sleep(time.Millisecond)
	}
	dropped := sink.Dropped()

	close(release)
	sink.Close()

	if dropped == 0 {
		t.Fatal("saturated sink never dropped an event")
	}
}

func TestHTTPSinkCountsFailedDeliveries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := newHTTPSink(sinkConfig(srv.URL, 8, time.Hour))
	sink.Emit(Event{RequestID: "r1"})
	sink.Emit(Event{RequestID: "r2"})
	sink.Close()

	if got := sink.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
}
