package wire

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/orchestrator"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
	"github.com/omnicore/agentrt/pkg/workflow"
)

// fakeConn lets the session loop be driven without a real socket.
type fakeConn struct {
	in  chan Envelope
	out chan Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan Envelope, 16), out: make(chan Envelope, 16)}
}

func (c *fakeConn) ReadJSON(v any) error {
	env, ok := <-c.in
	if !ok {
		return io.EOF
	}
	*(v.(*Envelope)) = env
	return nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.out <- v.(Envelope)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) recv(t *testing.T) Envelope {
	t.Helper()
	select {
	case env := <-c.out:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

type echoAgent struct {
	id      string
	content string
	reply   func(msg agent.Message) (agent.Message, error)
}

func (a *echoAgent) Metadata() agent.Metadata {
	return agent.Metadata{ID: a.id, Capabilities: []string{"search"}}
}
func (a *echoAgent) Status() agent.Status { return agent.StatusIdle }
func (a *echoAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	if a.reply != nil {
		return a.reply(msg)
	}
	return agent.Message{Kind: agent.MessageText, Sender: a.id, Content: a.content}, nil
}

type blockingAgent struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAgent) Metadata() agent.Metadata { return agent.Metadata{ID: "worker"} }
func (a *blockingAgent) Status() agent.Status     { return agent.StatusIdle }
func (a *blockingAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	select {
	case a.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return agent.Message{}, ctx.Err()
	case <-a.release:
		return agent.Message{Kind: agent.MessageText, Sender: "worker", Content: "done"}, nil
	}
}

func newTestServer(t *testing.T, agents map[string]agent.Agent) (*Server, *agent.Registry) {
	t.Helper()
	reg := agent.NewRegistry()
	for id, inst := range agents {
		inst := inst
		require.NoError(t, reg.Register(inst.Metadata(), func() agent.Agent { return inst }))
		_ = id
	}
	shared := sharedcontext.New()
	orch := orchestrator.New(orchestrator.Config{}, reg, shared)
	for id := range agents {
		_, err := orch.AddAgent(id)
		require.NoError(t, err)
	}
	engine := workflow.New(workflow.Config{StepTimeout: time.Second, DefaultTimeout: 5 * time.Second}, orch, shared, nil)
	return NewServer(orch, reg, engine), reg
}

func TestPingRespondsWithPong(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-1", conn); close(done) }()

	conn.in <- newEnvelope(TypePing, "1", nil)
	resp := conn.recv(t)
	assert.Equal(t, TypePong, resp.Type)
	assert.Equal(t, "1", resp.ID)

	close(conn.in)
	<-done
}

func TestChatRoutesToSelectedAgent(t *testing.T) {
	agents := map[string]agent.Agent{"assistant": &echoAgent{id: "assistant", content: "hello there"}}
	s, _ := newTestServer(t, agents)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-2", conn); close(done) }()

	conn.in <- newEnvelope(TypeSelectAgent, "sel", SelectAgentRequest{AgentID: "assistant"})
	ack := conn.recv(t)
	assert.Equal(t, TypeAgentStatus, ack.Type)

	conn.in <- newEnvelope(TypeChat, "chat-1", ChatRequest{Content: "hi"})
	resp := conn.recv(t)
	require.Equal(t, TypeChatResponse, resp.Type)
	assert.Equal(t, "chat-1", resp.ID)

	payload, ok := resp.Data.(ChatResponsePayload)
	require.True(t, ok)
	assert.Equal(t, "hello there", payload.Content)

	close(conn.in)
	<-done
}

func TestChatStreamingEmitsStartChunksAndExactlyOneEnd(t *testing.T) {
	longContent := ""
	for i := 0; i < 200; i++ {
		longContent += "x"
	}
	agents := map[string]agent.Agent{"assistant": &echoAgent{id: "assistant", content: longContent}}
	s, _ := newTestServer(t, agents)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-3", conn); close(done) }()

	conn.in <- newEnvelope(TypeChat, "chat-1", ChatRequest{Content: "hi", AgentID: "assistant", Streaming: true})

	start := conn.recv(t)
	require.Equal(t, TypeStreamStart, start.Type)
	require.Equal(t, "chat-1", start.ID)

	var reassembled string
	var terminators int
	for terminators == 0 {
		env := conn.recv(t)
		switch env.Type {
		case TypeStreamChunk:
			reassembled += env.Data.(StreamChunkPayload).Content
		case TypeStreamEnd:
			terminators++
		case TypeError:
			terminators++
			t.Fatalf("unexpected error terminator: %+v", env.Data)
		default:
			t.Fatalf("unexpected envelope type mid-stream: %s", env.Type)
		}
	}
	assert.Equal(t, longContent, reassembled)

	close(conn.in)
	<-done
}

func TestCancelEnvelopeTerminatesInFlightChatWithError(t *testing.T) {
	worker := &blockingAgent{started: make(chan struct{}, 1), release: make(chan struct{})}
	agents := map[string]agent.Agent{"worker": worker}
	s, _ := newTestServer(t, agents)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-4", conn); close(done) }()

	conn.in <- newEnvelope(TypeChat, "chat-1", ChatRequest{Content: "hi", AgentID: "worker"})

	select {
	case <-worker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat to start processing")
	}
	conn.in <- newEnvelope(TypeCancel, "", nil)

	resp := conn.recv(t)
	assert.Equal(t, TypeError, resp.Type)
	assert.Equal(t, "chat-1", resp.ID)

	close(conn.in)
	<-done
}

func TestUnknownEnvelopeTypeReturnsError(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-5", conn); close(done) }()

	conn.in <- newEnvelope(EnvelopeType("bogus"), "1", nil)
	resp := conn.recv(t)
	assert.Equal(t, TypeError, resp.Type)

	close(conn.in)
	<-done
}

func TestDisconnectTearsDownOnlyThatSession(t *testing.T) {
	s, _ := newTestServer(t, nil)
	connA := newFakeConn()
	connB := newFakeConn()
	doneA := make(chan struct{})
	doneB := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-a", connA); close(doneA) }()
	go func() { s.runSession(context.Background(), "sess-b", connB); close(doneB) }()

	connA.in <- newEnvelope(TypePing, "1", nil)
	connA.recv(t)
	connB.in <- newEnvelope(TypePing, "1", nil)
	connB.recv(t)
	assert.Equal(t, 2, s.SessionCount())

	close(connA.in)
	<-doneA
	assert.Equal(t, 1, s.SessionCount())

	connB.in <- newEnvelope(TypePing, "2", nil)
	connB.recv(t)

	close(connB.in)
	<-doneB
	assert.Equal(t, 0, s.SessionCount())
}

func TestAnalyzeCodeEmitsStatusThenResultThenSummary(t *testing.T) {
	s, _ := newTestServer(t, nil)
	conn := newFakeConn()
	done := make(chan struct{})
	go func() { s.runSession(context.Background(), "sess-6", conn); close(done) }()

	conn.in <- newEnvelope(TypeAnalyzeCode, "an-1", AnalyzeCodeRequest{Path: "main.go", Content: "package main\n", Language: "go"})

	started := conn.recv(t)
	assert.Equal(t, TypeAgentStatus, started.Type)
	completed := conn.recv(t)
	assert.Equal(t, TypeAgentStatus, completed.Type)
	result := conn.recv(t)
	assert.Equal(t, TypeAnalysisResult, result.Type)
	summary := conn.recv(t)
	assert.Equal(t, TypeChatResponse, summary.Type)

	close(conn.in)
	<-done
}
