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

// Package observability provides correlation ids, structured logging
// glue, Prometheus-backed counters/gauges/timings, and a nested request
// trace for the orchestration runtime.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// NewCorrelationID allocates a fresh "req-<random>" id for an inbound
// request.
func NewCorrelationID() string {
	return "req-" + uuid.NewString()
}

// WithCorrelationID pushes id onto ctx's correlation scope. A nested call
// shadows the outer id for descendants of the returned context while the
// outer id remains visible to the caller's own context value.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the nearest enclosing correlation id, or "" if
// none was ever pushed.
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}
