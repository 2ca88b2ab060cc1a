// Package wire implements the bidirectional session handler that sits
// between a framed-message transport and the orchestrator/workflow
// engine (spec §4.I Wire handler).
package wire

import "time"

// EnvelopeType is the closed set of client/server message kinds (spec
// §3 "Message envelope").
type EnvelopeType string

const (
	TypeChat          EnvelopeType = "chat"
	TypeGetAgents     EnvelopeType = "get-agents"
	TypeSelectAgent   EnvelopeType = "select-agent"
	TypeCancel        EnvelopeType = "cancel"
	TypeAnalyzeCode   EnvelopeType = "analyze-code"
	TypeScanWorkspace EnvelopeType = "scan-workspace"
	TypeQueryContext  EnvelopeType = "query-context"
	TypePing          EnvelopeType = "ping"

	TypeChatResponse     EnvelopeType = "chat-response"
	TypeStreamStart      EnvelopeType = "stream-start"
	TypeStreamChunk      EnvelopeType = "stream-chunk"
	TypeStreamEnd        EnvelopeType = "stream-end"
	TypeAgentList        EnvelopeType = "agent-list"
	TypeAgentStatus      EnvelopeType = "agent-status"
	TypeError            EnvelopeType = "error"
	TypeAnalysisResult   EnvelopeType = "analysis-result"
	TypeSecurityFindings EnvelopeType = "security-findings"
	TypeQueryResult      EnvelopeType = "query-result"
	TypePong             EnvelopeType = "pong"
)

// Envelope is the one client/server unit crossing the wire (spec §6
// "Wire envelope").
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	ID        string       `json:"id,omitempty"`
	Data      any          `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func newEnvelope(t EnvelopeType, id string, data any) Envelope {
	return Envelope{Type: t, ID: id, Data: data, Timestamp: time.Now()}
}

// ErrorPayload is the data carried by an "error" envelope.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ChatRequest is the data carried by a "chat" envelope.
type ChatRequest struct {
	Content   string `json:"content"`
	AgentID   string `json:"agentId,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
}

// ChatResponsePayload is the data carried by a "chat-response" envelope.
type ChatResponsePayload struct {
	Content string `json:"content"`
	AgentID string `json:"agentId"`
}

// StreamChunkPayload is the data carried by a "stream-chunk" envelope.
type StreamChunkPayload struct {
	Content string `json:"content"`
}

// SelectAgentRequest is the data carried by a "select-agent" envelope.
type SelectAgentRequest struct {
	AgentID string `json:"agentId"`
}

// AnalyzeCodeRequest is the data carried by an "analyze-code" envelope.
type AnalyzeCodeRequest struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ScanWorkspaceRequest is the data carried by a "scan-workspace"
// envelope.
type ScanWorkspaceRequest struct {
	WorkspacePath string            `json:"workspacePath"`
	Files         map[string]string `json:"files,omitempty"`
}

// QueryContextRequest is the data carried by a "query-context" envelope.
type QueryContextRequest struct {
	Query string `json:"query"`
}

// AgentStatusPayload is the data carried by an "agent-status" envelope
// emitted on workflow stage entry/exit (spec §4.I "emitting agent_status
// events on stage entry/exit").
type AgentStatusPayload struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}
