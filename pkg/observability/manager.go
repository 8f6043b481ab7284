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
	"sync"
)

// Manager owns the tracer and metrics lifecycle. A Manager built from a
// nil config (or one with everything disabled) is fully functional and
// hands out no-ops.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager creates an uninitialized Manager. cfg may be nil.
func NewManager(cfg *Config) *Manager {
	return &Manager{config: cfg}
}

// NoopManager returns a Manager with everything disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// Initialize constructs the enabled subsystems.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		return nil
	}

	if m.config.Tracing.Enabled {
		tracer, err := NewTracer(ctx, m.config.Tracing)
		if err != nil {
			return err
		}
		m.tracer = tracer
	}

	if m.config.Metrics.Enabled {
		metrics, err := NewMetrics(m.config.Metrics)
		if err != nil {
			return err
		}
		m.metrics = metrics
	}

	return nil
}

// Tracer returns the tracer, or nil when tracing is disabled.
// A nil *Tracer is safe to use.
func (m *Manager) Tracer() *Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

// Metrics returns the active recorder, a no-op when disabled.
func (m *Manager) Metrics() Recorder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.metrics == nil {
		return NoopMetrics{}
	}
	return m.metrics
}

// MetricsEnabled reports whether a real metrics backend is active.
func (m *Manager) MetricsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics != nil
}

// MetricsEndpoint returns the configured metrics path.
func (m *Manager) MetricsEndpoint() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil || m.config.Metrics.Endpoint == "" {
		return "/metrics"
	}
	return m.config.Metrics.Endpoint
}

// MetricsHandler returns the exposition handler (503 when disabled).
func (m *Manager) MetricsHandler() http.Handler {
	return m.Metrics().Handler()
}

// Shutdown flushes both subsystems.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if m.tracer != nil {
		if err := m.tracer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if m.metrics != nil {
		if err := m.metrics.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
