// Package orchestrator wires concrete agent instances together, routes
// messages between them, and runs the validate/register fan-outs the
// workflow engine drives (spec §4.G Orchestrator).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/omnicore/agentrt/pkg/agent"
	omniErrors "github.com/omnicore/agentrt/pkg/errors"
	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/logger"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
	"github.com/omnicore/agentrt/pkg/vectorstore"
)

// HistoryEntry is one request/response pair recorded in the
// orchestrator's in-process ring (spec §4.G "in-process history ring").
type HistoryEntry struct {
	Request   agent.Message
	Response  agent.Message
	Err       error
	Timestamp time.Time
}

// Config tunes the orchestrator's capability wiring and history ring.
type Config struct {
	LLM          llmprovider.Provider
	RAG          vectorstore.Store
	MaxHistory   int
	AgentTimeout time.Duration
}

// Orchestrator holds a fixed map of live agent instances plus an
// in-process history ring (spec §4.G).
type Orchestrator struct {
	cfg      Config
	registry *agent.Registry
	shared   *sharedcontext.SharedContext

	mu     sync.RWMutex
	agents map[string]agent.Agent

	histMu  sync.Mutex
	history []HistoryEntry
}

func New(cfg Config, registry *agent.Registry, shared *sharedcontext.SharedContext) *Orchestrator {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 1000
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 30 * time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		shared:   shared,
		agents:   make(map[string]agent.Agent),
	}
}

// AddAgent obtains a fresh instance from the registry, wires in the
// LLM/RAG capabilities if accepted, and re-runs rewire so the Context
// and Retrieval references reach the other live agents whichever order
// they were added in (spec §4.G "Wiring").
func (o *Orchestrator) AddAgent(id string) (agent.Agent, error) {
	inst, ok := o.registry.Get(id)
	if !ok {
		return nil, omniErrors.New(omniErrors.KindAgentNotFound, "agent not registered: "+id,
			omniErrors.WithContext(omniErrors.Context{AgentID: id}))
	}

	if acc, ok := inst.(agent.AcceptsLLM); ok && o.cfg.LLM != nil {
		acc.SetLLM(o.cfg.LLM)
	}
	if acc, ok := inst.(agent.AcceptsRAG); ok && o.cfg.RAG != nil {
		acc.SetRAG(o.cfg.RAG)
	}
	if init, ok := inst.(agent.Initializer); ok {
		if err := init.Initialize(context.Background()); err != nil {
			return nil, omniErrors.New(omniErrors.KindAgentConfiguration, "initialize failed for "+id,
				omniErrors.WithCause(err), omniErrors.WithContext(omniErrors.Context{AgentID: id}))
		}
	}

	o.mu.Lock()
	o.agents[id] = inst
	o.mu.Unlock()

	o.rewire()
	return inst, nil
}

// rewire hands the live agent advertising "extract-facts" (Context) and
// the one advertising "search" (Retrieval) to every live agent that
// accepts them through SetContextAgent/SetRetrievalAgent. If several
// agents advertise the same capability, only one of them is handed out;
// no agent is handed Security or Compliance references. Idempotent:
// re-running it after adding an unrelated agent is a no-op for pairs
// already wired (spec §4.G "This is idempotent").
func (o *Orchestrator) rewire() {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var contextAgent, retrievalAgent agent.Agent
	for _, a := range o.agents {
		for _, capability := range a.Metadata().Capabilities {
			switch capability {
			case "extract-facts":
				contextAgent = a
			case "search":
				retrievalAgent = a
			}
		}
	}

	for _, a := range o.agents {
		if contextAgent != nil {
			if acc, ok := a.(agent.AcceptsContextAgent); ok {
				acc.SetContextAgent(contextAgent)
			}
		}
		if retrievalAgent != nil {
			if acc, ok := a.(agent.AcceptsRetrievalAgent); ok {
				acc.SetRetrievalAgent(retrievalAgent)
			}
		}
	}
}

func (o *Orchestrator) get(id string) (agent.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[id]
	return a, ok
}

func (o *Orchestrator) recordHistory(entry HistoryEntry) {
	o.histMu.Lock()
	defer o.histMu.Unlock()
	o.history = append(o.history, entry)
	if len(o.history) > o.cfg.MaxHistory {
		o.history = o.history[len(o.history)-o.cfg.MaxHistory:]
	}
}

// History returns a copy of the recorded request/response ring.
func (o *Orchestrator) History() []HistoryEntry {
	o.histMu.Lock()
	defer o.histMu.Unlock()
	return append([]HistoryEntry(nil), o.history...)
}

// SendToAgent routes a single message to a named agent, appending both
// the request and response to history. Failures are converted to
// structured error messages tagged with the agent id (spec §4.G
// "send-to-agent").
func (o *Orchestrator) SendToAgent(ctx context.Context, id string, msg agent.Message) (agent.Message, error) {
	a, ok := o.get(id)
	if !ok {
		err := omniErrors.New(omniErrors.KindAgentNotFound, "agent not found: "+id,
			omniErrors.WithContext(omniErrors.Context{AgentID: id}))
		resp := agent.Message{Kind: agent.MessageError, Sender: id, Content: err.Error()}
		o.recordHistory(HistoryEntry{Request: msg, Response: resp, Err: err, Timestamp: time.Now()})
		return resp, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	respCh := make(chan agent.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := a.Process(ctx, msg, o.shared)
		respCh <- resp
		errCh <- err
	}()

	var resp agent.Message
	var err error
	select {
	case <-ctx.Done():
		err = omniErrors.New(omniErrors.KindAgentTimeout, "agent timed out: "+id,
			omniErrors.WithContext(omniErrors.Context{AgentID: id}))
		resp = agent.Message{Kind: agent.MessageError, Sender: id, Content: err.Error()}
	case resp = <-respCh:
		err = <-errCh
		if err != nil {
			wrapped := omniErrors.New(omniErrors.KindAgentFatal, "agent failed: "+id,
				omniErrors.WithCause(err), omniErrors.WithContext(omniErrors.Context{AgentID: id}))
			resp = agent.Message{Kind: agent.MessageError, Sender: id, Content: wrapped.Error()}
			err = wrapped
		}
	}

	o.recordHistory(HistoryEntry{Request: msg, Response: resp, Err: err, Timestamp: time.Now()})
	return resp, err
}

// SendToAgentWithRetry wraps SendToAgent in a retry policy (a zero-value
// policy falls back to FastPolicy), emitting a retry event on each
// retry (spec §4.G "send-to-agent-with-retry").
func (o *Orchestrator) SendToAgentWithRetry(ctx context.Context, id string, msg agent.Message, policy omniErrors.RetryPolicy, onRetry func(attempt int, err error)) (agent.Message, error) {
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 && policy.MaxDelay == 0 {
		policy = omniErrors.FastPolicy()
	}
	var resp agent.Message
	err := omniErrors.Do(ctx, policy, func(attempt int, err error, delay time.Duration) {
		logger.GetLogger().Warn("retrying agent call", "agent", id, "attempt", attempt, "delay", delay)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}, func(ctx context.Context) error {
		var callErr error
		resp, callErr = o.SendToAgent(ctx, id, msg)
		return callErr
	})
	return resp, err
}
