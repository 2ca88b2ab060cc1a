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

// Package errors defines the typed error taxonomy shared by every layer of
// the orchestration runtime: agents, LLM/vector-store collaborators,
// workflow stages and the retry/timeout primitives that operate on them.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a runtime error. Kinds (not Go types)
// are what retry policies and propagation rules key off of.
type Kind string

const (
	KindAgentTimeout       Kind = "agent_timeout"
	KindAgentValidation    Kind = "agent_validation"
	KindAgentConfiguration Kind = "agent_configuration"
	KindAgentNotFound      Kind = "agent_not_found"
	KindAgentFatal         Kind = "agent_fatal"
	KindAgentDependency    Kind = "agent_dependency"

	KindLLMTimeout        Kind = "llm_timeout"
	KindLLMRateLimit      Kind = "llm_rate_limit"
	KindLLMAuthentication Kind = "llm_authentication"
	KindLLMResponse       Kind = "llm_response"

	KindVectorDBConnection Kind = "vectordb_connection"
	KindVectorDBQuery      Kind = "vectordb_query"
	KindVectorDBIndex      Kind = "vectordb_index"

	KindRAGIndex Kind = "rag_index"
	KindRAGQuery Kind = "rag_query"

	KindWorkflowTimeout    Kind = "workflow_timeout"
	KindWorkflowValidation Kind = "workflow_validation"
	KindWorkflowStage      Kind = "workflow_stage"

	KindPoolExhausted Kind = "pool_exhausted"
	KindPoolClosed    Kind = "pool_closed"

	KindBudgetExhausted Kind = "budget_exhausted"
)

// defaultRecoverable mirrors spec §4.A: timeout, rate-limit and connection
// errors default to recoverable; validation, auth, not-found and fatal
// errors default to non-recoverable.
var defaultRecoverable = map[Kind]bool{
	KindAgentTimeout:       true,
	KindAgentValidation:    false,
	KindAgentConfiguration: false,
	KindAgentNotFound:      false,
	KindAgentFatal:         false,
	KindAgentDependency:    false,

	KindLLMTimeout:        true,
	KindLLMRateLimit:      true,
	KindLLMAuthentication: false,
	KindLLMResponse:       false,

	KindVectorDBConnection: true,
	KindVectorDBQuery:      false,
	KindVectorDBIndex:      false,

	KindRAGIndex: false,
	KindRAGQuery: false,

	KindWorkflowTimeout:    true,
	KindWorkflowValidation: false,
	KindWorkflowStage:      false,

	KindPoolExhausted: true,
	KindPoolClosed:    false,

	KindBudgetExhausted: false,
}

// Context carries the diagnostic fields every taxonomy error can attach.
type Context struct {
	AgentID       string
	Operation     string
	CorrelationID string
	Metadata      map[string]any
}

// Error is the single struct behind the whole taxonomy; Kind selects the
// category, everything else is shared shape.
type Error struct {
	Kind        Kind
	Message     string
	Cause       error
	Ctx         *Context
	Recoverable bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Ctx != nil {
		if e.Ctx.AgentID != "" {
			msg += fmt.Sprintf(" (agent=%s)", e.Ctx.AgentID)
		}
		if e.Ctx.Operation != "" {
			msg += fmt.Sprintf(" (op=%s)", e.Ctx.Operation)
		}
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a taxonomy error, defaulting Recoverable from Kind unless the
// caller overrides it with WithRecoverable.
func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{
		Kind:        kind,
		Message:     message,
		Recoverable: defaultRecoverable[kind],
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option customizes an Error at construction time.
type Option func(*Error)

func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

func WithContext(ctx Context) Option {
	return func(e *Error) { e.Ctx = &ctx }
}

func WithRecoverable(recoverable bool) Option {
	return func(e *Error) { e.Recoverable = recoverable }
}

// IsRecoverable reports whether err (or any error it wraps) is a taxonomy
// error marked recoverable.
func IsRecoverable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return false
}

// KindOf extracts the taxonomy Kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// MissingDependencyError reports agents named in dependencies[*] that never
// resolved to a registered agent (spec §4.B validation rule).
type MissingDependencyError struct {
	AgentID string
	Missing []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("agent %q has unresolved dependencies: %v", e.AgentID, e.Missing)
}

// CircularDependencyError reports a dependency cycle detected during
// topological sort or explicit cycle detection (spec §4.B).
type CircularDependencyError struct {
	Cycle     []string
	Remaining []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("circular dependency detected: %v", e.Cycle)
	}
	return fmt.Sprintf("circular dependency among remaining agents: %v", e.Remaining)
}

// PoolExhaustedError is raised when Acquire times out with no idle or
// creatable connection available.
type PoolExhaustedError struct {
	Waited string
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted after waiting %s", e.Waited)
}

// PoolClosedError is raised when Acquire is called on (or unblocked by) a
// closed pool.
type PoolClosedError struct{}

func (e *PoolClosedError) Error() string { return "connection pool is closed" }

// BudgetExhaustedError names the stages a time budget completed before
// running out of remaining time (spec §4.A).
type BudgetExhaustedError struct {
	CompletedStages []string
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("workflow time budget exhausted after stages: %v", e.CompletedStages)
}

func NewBudgetExhaustedError(completed []string) *Error {
	return New(KindBudgetExhausted, (&BudgetExhaustedError{CompletedStages: completed}).Error(),
		WithCause(&BudgetExhaustedError{CompletedStages: completed}))
}
