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
	"sync"
	"time"
)

// SpanStatus is the terminal state of an AgentSpan.
type SpanStatus string

const (
	SpanInProgress SpanStatus = "in_progress"
	SpanSuccess    SpanStatus = "success"
	SpanError      SpanStatus = "error"
)

// AgentSpan is one entry in a RequestTrace: an agent operation, possibly
// nested under a parent span (spec §4.J).
type AgentSpan struct {
	AgentID       string
	Operation     string
	CorrelationID string
	Start         time.Time
	End           time.Time
	Status        SpanStatus
	Err           error
	Children      []*AgentSpan

	parent *AgentSpan
}

// Finish marks the span successful, or errored if err is non-nil.
func (s *AgentSpan) Finish(err error) {
	s.End = time.Now()
	if err != nil {
		s.Status = SpanError
		s.Err = err
		return
	}
	s.Status = SpanSuccess
}

// RequestTrace composes the nested AgentSpans for one inbound request,
// from arrival to final emit (spec §3 Lifecycle).
type RequestTrace struct {
	mu            sync.Mutex
	CorrelationID string
	Started       time.Time
	Roots         []*AgentSpan
	current       map[*AgentSpan]bool
}

type traceKey struct{}
type spanKey struct{}

// NewRequestTrace starts a trace for correlationID.
func NewRequestTrace(correlationID string) *RequestTrace {
	return &RequestTrace{
		CorrelationID: correlationID,
		Started:       time.Now(),
		current:       make(map[*AgentSpan]bool),
	}
}

// WithTrace attaches t to ctx so StartSpan can find the active parent.
func WithTrace(ctx context.Context, t *RequestTrace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFromContext returns the trace attached to ctx, if any.
func TraceFromContext(ctx context.Context) (*RequestTrace, bool) {
	t, ok := ctx.Value(traceKey{}).(*RequestTrace)
	return t, ok
}

// StartSpan opens a new span in t under the span carried in ctx (or as
// a root span of t if ctx carries none), returning a context that carries
// the new span as the active parent for further nesting.
func (t *RequestTrace) StartSpan(ctx context.Context, agentID, operation string) (context.Context, *AgentSpan) {
	span := &AgentSpan{
		AgentID:       agentID,
		Operation:     operation,
		CorrelationID: t.CorrelationID,
		Start:         time.Now(),
		Status:        SpanInProgress,
	}

	t.mu.Lock()
	if parent, ok := ctx.Value(spanKey{}).(*AgentSpan); ok && parent != nil {
		span.parent = parent
		parent.Children = append(parent.Children, span)
	} else {
		t.Roots = append(t.Roots, span)
	}
	t.mu.Unlock()

	return context.WithValue(ctx, spanKey{}, span), span
}
