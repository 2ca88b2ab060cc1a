// Package agent defines the agent contract, capability-injection
// interfaces, an in-process registry, and a plugin loader (spec §4.E).
package agent

import (
	"context"
	"time"

	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/vectorstore"
)

// Status is an agent's runtime state (spec §3 agent runtime state).
type Status string

const (
	StatusIdle      Status = "idle"
	StatusThinking  Status = "thinking"
	StatusExecuting Status = "executing"
	StatusWaiting   Status = "waiting"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// MessageKind identifies the shape of a Message's content (spec §3
// agent message).
type MessageKind string

const (
	MessageText       MessageKind = "text"
	MessageToolCall   MessageKind = "tool_call"
	MessageToolResult MessageKind = "tool_result"
	MessageSystem     MessageKind = "system"
	MessageError      MessageKind = "error"
	MessageStatus     MessageKind = "status"
)

// Message is the inter-agent unit exchanged between the orchestrator
// and an agent's process call (spec §3 agent message).
type Message struct {
	ID        string
	Kind      MessageKind
	Content   string
	Sender    string
	Recipient string
	Metadata  map[string]any
	Timestamp time.Time
}

// Metadata is an agent's immutable identity (spec §3 agent metadata).
// Dependencies feed the pkg/depgraph graph that omnirtd checks at
// startup; Provides is not read by pkg/depgraph.
type Metadata struct {
	ID           string
	Name         string
	Description  string
	Version      string
	Capabilities []string
	Dependencies []string
	Provides     []string
	Tags         []string
}

// Agent is the base contract every concrete agent implements. Process
// must update the agent's own runtime Status before returning, and must
// never panic or return an error outside the pkg/errors taxonomy.
type Agent interface {
	Metadata() Metadata
	Status() Status
	Process(ctx context.Context, msg Message, shared SharedState) (Message, error)
}

// SharedState is the subset of pkg/sharedcontext.SharedContext an agent
// depends on, kept narrow so agents can be tested against a fake.
type SharedState interface {
	WorkspacePath() string
}

// Initializer is implemented by agents that need setup before their
// first Process call.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is implemented by agents that hold resources needing
// explicit teardown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// AcceptsLLM is implemented by agents the orchestrator wires an LLM
// provider into (spec §4.E setLLM).
type AcceptsLLM interface {
	SetLLM(p llmprovider.Provider)
}

// AcceptsRAG is implemented by agents the orchestrator wires a vector
// store into (spec §4.E setRAG).
type AcceptsRAG interface {
	SetRAG(s vectorstore.Store)
}

// AcceptsContextAgent is implemented by agents that consume the Context
// agent's published state directly (spec §4.E setContextAgent).
type AcceptsContextAgent interface {
	SetContextAgent(a Agent)
}

// AcceptsRetrievalAgent is implemented by agents that consume the
// Retrieval agent directly (spec §4.E setRAGAgent).
type AcceptsRetrievalAgent interface {
	SetRetrievalAgent(a Agent)
}
