package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/logger"
	"github.com/omnicore/agentrt/pkg/observability"
	"github.com/omnicore/agentrt/pkg/orchestrator"
	"github.com/omnicore/agentrt/pkg/workflow"
)

// wireConn is the subset of *websocket.Conn the session loop needs,
// narrowed so tests can drive dispatch logic against an in-memory
// fake instead of a real socket.
type wireConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Server upgrades incoming connections and runs one session per
// connection, translating envelopes into orchestrator/workflow calls
// (spec §4.I Wire handler).
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *agent.Registry
	engine   *workflow.Engine
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewServer(orch *orchestrator.Orchestrator, registry *agent.Registry, engine *workflow.Engine) *Server {
	return &Server{
		orch:     orch,
		registry: registry,
		engine:   engine,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the HTTP request to a WebSocket and runs the
// session to completion. It blocks for the lifetime of the connection.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.GetLogger().Warn("wire: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	ctx := observability.WithCorrelationID(r.Context(), observability.NewCorrelationID())
	s.runSession(ctx, id, conn)
}

// SessionCount reports how many sessions are currently live.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// runSession owns the per-connection read loop and the sequential
// processing loop. Reads and dispatch run on separate goroutines so a
// "cancel" envelope can interrupt an in-flight operation without
// waiting for it to finish (spec §5 "at the next suspension point").
// Connection loss tears down only this session; other sessions are
// never touched (spec §4.I "other sessions are unaffected").
func (s *Server) runSession(parentCtx context.Context, id string, conn wireConn) {
	sessCtx, sessCancel := context.WithCancel(parentCtx)
	defer sessCancel()

	sess := &Session{ID: id, send: func(env Envelope) error { return conn.WriteJSON(env) }}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()

	requests := make(chan Envelope, 16)

	go func() {
		defer close(requests)
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Type == TypeCancel {
				sess.cancelOp()
				continue
			}
			select {
			case requests <- env:
			case <-sessCtx.Done():
				return
			}
		}
	}()

	// Processed one at a time: this is what gives "chat responses
	// appear in the order requests were accepted" (spec §5 ordering
	// guarantees) without any extra bookkeeping.
	for {
		select {
		case env, ok := <-requests:
			if !ok {
				return
			}
			opCtx, cancel := context.WithCancel(sessCtx)
			opCtx = observability.WithCorrelationID(opCtx, observability.NewCorrelationID())
			sess.setOpCancel(cancel)
			s.dispatch(opCtx, sess, env)
			sess.setOpCancel(nil)
			cancel()
		case <-sessCtx.Done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *Session, env Envelope) {
	switch env.Type {
	case TypePing:
		sess.Send(newEnvelope(TypePong, env.ID, nil))
	case TypeGetAgents:
		s.handleGetAgents(sess, env)
	case TypeSelectAgent:
		s.handleSelectAgent(sess, env)
	case TypeChat:
		s.handleChat(ctx, sess, env)
	case TypeAnalyzeCode:
		s.handleAnalyzeCode(ctx, sess, env)
	case TypeScanWorkspace:
		s.handleScanWorkspace(ctx, sess, env)
	case TypeQueryContext:
		s.handleQueryContext(ctx, sess, env)
	default:
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "unrecognized envelope type: " + string(env.Type)}))
	}
}

func decodeData(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Server) handleGetAgents(sess *Session, env Envelope) {
	sess.Send(newEnvelope(TypeAgentList, env.ID, s.registry.List(true)))
}

func (s *Server) handleSelectAgent(sess *Session, env Envelope) {
	var req SelectAgentRequest
	if err := decodeData(env.Data, &req); err != nil || req.AgentID == "" {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "invalid select-agent request"}))
		return
	}
	sess.setCurrentAgent(req.AgentID)
	sess.Send(newEnvelope(TypeAgentStatus, env.ID, AgentStatusPayload{Stage: "select-agent", Status: "completed", Detail: req.AgentID}))
}

// handleChat routes to the session's current agent (or an explicit
// agentId override), then either replies in one chat-response or opens
// a stream-start/chunk*/stream-end sequence (spec §4.I "Streaming
// contract").
func (s *Server) handleChat(ctx context.Context, sess *Session, env Envelope) {
	var req ChatRequest
	if err := decodeData(env.Data, &req); err != nil {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "invalid chat request: " + err.Error()}))
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = sess.CurrentAgentID()
	}
	if agentID == "" {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "no agent selected"}))
		return
	}

	resp, err := s.orch.SendToAgent(ctx, agentID, agent.Message{
		Kind: agent.MessageText, Content: req.Content, Sender: "user", Recipient: agentID,
	})
	if err != nil {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: err.Error()}))
		return
	}

	if !req.Streaming {
		sess.Send(newEnvelope(TypeChatResponse, env.ID, ChatResponsePayload{Content: resp.Content, AgentID: agentID}))
		return
	}
	s.streamChat(ctx, sess, env.ID, resp.Content)
}

const streamChunkSize = 64

// streamChat emits exactly one terminator for every stream-start: a
// stream-end on normal completion, or an error envelope if the
// operation is cancelled mid-stream (spec §3 "Streaming invariant").
func (s *Server) streamChat(ctx context.Context, sess *Session, id, content string) {
	if err := sess.Send(newEnvelope(TypeStreamStart, id, nil)); err != nil {
		return
	}

	runes := []rune(content)
	for start := 0; start < len(runes); start += streamChunkSize {
		select {
		case <-ctx.Done():
			sess.Send(newEnvelope(TypeError, id, ErrorPayload{Message: "stream cancelled"}))
			return
		default:
		}
		end := start + streamChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := sess.Send(newEnvelope(TypeStreamChunk, id, StreamChunkPayload{Content: string(runes[start:end])})); err != nil {
			return
		}
	}
	sess.Send(newEnvelope(TypeStreamEnd, id, nil))
}

// handleAnalyzeCode drives the workflow engine's single-file pipeline,
// reporting stage entry/exit plus one result event and a summary
// chat-response (spec §4.I "Analyze/scan handlers").
func (s *Server) handleAnalyzeCode(ctx context.Context, sess *Session, env Envelope) {
	var req AnalyzeCodeRequest
	if err := decodeData(env.Data, &req); err != nil || req.Path == "" {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "invalid analyze-code request"}))
		return
	}

	sess.Send(newEnvelope(TypeAgentStatus, env.ID, AgentStatusPayload{Stage: "analyze-code", Status: "started"}))
	result := s.engine.AnalyzeFile(ctx, req.Path, req.Content, req.Language)
	sess.Send(newEnvelope(TypeAgentStatus, env.ID, AgentStatusPayload{Stage: "analyze-code", Status: "completed"}))

	if len(result.SecurityFindings) > 0 || len(result.ComplianceFindings) > 0 {
		sess.Send(newEnvelope(TypeSecurityFindings, env.ID, result))
	} else {
		sess.Send(newEnvelope(TypeAnalysisResult, env.ID, result))
	}
	sess.Send(newEnvelope(TypeChatResponse, env.ID, ChatResponsePayload{Content: summarizeResult(result), AgentID: "workflow"}))
}

// handleScanWorkspace drives the workflow engine's five-stage pipeline,
// relaying its progress callback as agent-status events.
func (s *Server) handleScanWorkspace(ctx context.Context, sess *Session, env Envelope) {
	var req ScanWorkspaceRequest
	if err := decodeData(env.Data, &req); err != nil || req.WorkspacePath == "" {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "invalid scan-workspace request"}))
		return
	}

	progress := func(ev workflow.ProgressEvent) {
		sess.Send(newEnvelope(TypeAgentStatus, env.ID, AgentStatusPayload{Stage: ev.Stage, Status: ev.Status, Detail: ev.Detail}))
	}
	result := s.engine.AnalyzeWorkspace(ctx, req.WorkspacePath, req.Files, 0, progress)
	sess.Send(newEnvelope(TypeAnalysisResult, env.ID, result))
	sess.Send(newEnvelope(TypeChatResponse, env.ID, ChatResponsePayload{Content: summarizeResult(result), AgentID: "workflow"}))
}

// handleQueryContext forwards to the live agent advertising the
// "search" capability (the Retrieval agent, per pkg/orchestrator's
// wiring convention).
func (s *Server) handleQueryContext(ctx context.Context, sess *Session, env Envelope) {
	var req QueryContextRequest
	if err := decodeData(env.Data, &req); err != nil || req.Query == "" {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "invalid query-context request"}))
		return
	}

	candidates := s.registry.FindByCapability("search")
	if len(candidates) == 0 {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: "no retrieval agent registered"}))
		return
	}

	resp, err := s.orch.SendToAgent(ctx, candidates[0].ID, agent.Message{
		Kind: agent.MessageText, Content: req.Query, Sender: "user", Recipient: candidates[0].ID,
	})
	if err != nil {
		sess.Send(newEnvelope(TypeError, env.ID, ErrorPayload{Message: err.Error()}))
		return
	}
	sess.Send(newEnvelope(TypeQueryResult, env.ID, resp))
}

func summarizeResult(r workflow.Result) string {
	if r.Success {
		return fmt.Sprintf("analysis complete: %d issue(s) found", r.TotalIssues)
	}
	return fmt.Sprintf("analysis completed with %d error(s), %d issue(s) found", len(r.Errors), r.TotalIssues)
}
