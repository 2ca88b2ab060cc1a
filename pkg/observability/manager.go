// Copyright 2025 Kadir Pekel
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
	"log/slog"
	"net/http"
	"sync"

	"github.com/omnicore/agentrt/pkg/logger"
)

// Manager is the single injected handle every component goes through
// for logging, metrics, and request tracing (spec §9: no globals).
type Manager struct {
	log     *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	traces map[string]*RequestTrace
}

// NewManager builds a Manager with metrics registered under namespace.
// log may be nil, in which case logger.GetLogger() is used.
func NewManager(namespace string, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		log:     log,
		metrics: NewMetrics(namespace),
		traces:  make(map[string]*RequestTrace),
	}
}

// Logger returns the manager's structured logger.
func (m *Manager) Logger() *slog.Logger { return m.log }

// Metrics returns the Prometheus-backed metrics collector.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// MetricsHandler exposes the metrics registry over HTTP; omnirtd mounts
// it at /metrics on the main server port.
func (m *Manager) MetricsHandler() http.Handler { return m.metrics.Handler() }

// StartRequest allocates a correlation id and a RequestTrace for an
// inbound message, attaching both to the returned context.
func (m *Manager) StartRequest(ctx context.Context) (context.Context, *RequestTrace) {
	id := NewCorrelationID()
	ctx = WithCorrelationID(ctx, id)

	trace := NewRequestTrace(id)
	ctx = WithTrace(ctx, trace)

	m.mu.Lock()
	m.traces[id] = trace
	m.mu.Unlock()

	return ctx, trace
}

// FinishRequest drops the bookkeeping entry for a completed trace.
func (m *Manager) FinishRequest(correlationID string) {
	m.mu.Lock()
	delete(m.traces, correlationID)
	m.mu.Unlock()
}

// LogWith returns a logger enriched with the correlation id, agent id
// (when known), and operation name carried on ctx (spec §4.J Structured
// logging).
func (m *Manager) LogWith(ctx context.Context, agentID, operation string) *slog.Logger {
	l := m.log
	if id := CorrelationID(ctx); id != "" {
		l = l.With("correlation_id", id)
	}
	if agentID != "" {
		l = l.With("agent_id", agentID)
	}
	if operation != "" {
		l = l.With("operation", operation)
	}
	return l
}
