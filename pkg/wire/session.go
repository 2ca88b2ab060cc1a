package wire

import "sync"

// Session is the per-connection state the handler maintains: the
// current agent a chat envelope without an explicit agentId routes to,
// and the cancellation hook for whatever operation is in flight (spec
// §4.I "Maintains one session per connection: {sessionId,
// currentAgentId, context}").
type Session struct {
	ID string

	send   func(Envelope) error
	sendMu sync.Mutex

	mu             sync.Mutex
	currentAgentID string
	opCancel       func()
}

// Send serializes one envelope write against concurrent writes from
// other operations on the same session.
func (s *Session) Send(env Envelope) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.send(env)
}

func (s *Session) setCurrentAgent(id string) {
	s.mu.Lock()
	s.currentAgentID = id
	s.mu.Unlock()
}

func (s *Session) CurrentAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAgentID
}

func (s *Session) setOpCancel(cancel func()) {
	s.mu.Lock()
	s.opCancel = cancel
	s.mu.Unlock()
}

// cancelOp cancels whatever operation is currently in flight, if any
// (spec §5 "a cancel envelope ... cancels in-flight operations for
// that session at the next suspension point").
func (s *Session) cancelOp() {
	s.mu.Lock()
	cancel := s.opCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
