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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/httpclient"
)

// flushBatchSize caps how many events one POST carries.
const flushBatchSize = 32

// Sink receives trace events. Delivery is best-effort: a sink must
// never block or fail the tool call that produced the event.
type Sink interface {
	Emit(Event)
	Close()
}

// NewSink builds the sink the configuration asks for: disabled means
// no-op, the literal endpoint "stdout" selects JSONL on standard
// output for development, anything else is batched HTTP delivery.
func NewSink(cfg config.TraceSinkConfig) Sink {
	switch {
	case !cfg.Enabled:
		return NopSink{}
	case cfg.Endpoint == "stdout":
		return NewStdoutSink(os.Stdout)
	default:
		return newHTTPSink(cfg)
	}
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}
func (NopSink) Close()     {}

// stdoutSink writes one JSON line per event.
type stdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutSink returns a sink that writes JSONL to w.
func NewStdoutSink(w io.Writer) Sink {
	return &stdoutSink{w: w}
}

func (s *stdoutSink) Emit(ev Event) {
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(line, '\n'))
}

func (s *stdoutSink) Close() {}

// httpSink queues events on a bounded channel and POSTs them in
// batches from a background goroutine. When the buffer is full events
// are dropped and counted, never blocked on.
type httpSink struct {
	endpoint string
	apiKey   string
	client   *httpclient.Client
	interval time.Duration

	events  chan Event
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func newHTTPSink(cfg config.TraceSinkConfig) *httpSink {
	s := &httpSink{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: httpclient.New(
			httpclient.WithTimeout(10*time.Second),
			httpclient.WithMaxRetries(1),
			httpclient.WithBaseDelay(time.Second),
		),
		interval: cfg.FlushInterval,
		events:   make(chan Event, cfg.BufferSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *httpSink) Emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Close flushes buffered events and stops the flusher. Safe to call
// more than once.
func (s *httpSink) Close() {
	s.once.Do(func() {
		close(s.quit)
		<-s.stopped
	})
}

// Dropped reports how many events were discarded, either because the
// buffer was full or because delivery failed.
func (s *httpSink) Dropped() int64 { return s.dropped.Load() }

func (s *httpSink) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatchSize)
	for {
		select {
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= flushBatchSize {
				s.flush(&batch)
			}
		case <-ticker.C:
			s.flush(&batch)
		case <-s.quit:
			// Drain whatever is already buffered, then one last flush.
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					s.flush(&batch)
					return
				}
			}
		}
	}
}

func (s *httpSink) flush(batch *[]Event) {
	if len(*batch) == 0 {
		return
	}
	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}
	payload := map[string]any{"events": *batch}
	if err := s.client.PostJSON(context.Background(), s.endpoint, headers, payload, nil); err != nil {
		s.dropped.Add(int64(len(*batch)))
		slog.Debug("trace sink flush failed", "events", len(*batch), "error", err)
	}
	*batch = (*batch)[:0]
}
