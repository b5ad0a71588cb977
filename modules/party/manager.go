package party

import (
	"fmt"
	"sync"

	"steam-party-bot/pkg/partybot"
)

// sessionManager tracks at most one live session per conversation.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*session)}
}

func (m *sessionManager) add(session *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversationID := session.conversation.ID
	if _, exists := m.sessions[conversationID]; exists {
		return fmt.Errorf("session for conversation %s: %w", conversationID, partybot.ErrPartyAlreadyActive)
	}
	m.sessions[conversationID] = session

	return nil
}

func (m *sessionManager) lookup(conversationID string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[conversationID]

	return session, exists
}

// remove drops the tracked session only when it is still the given one, so a
// replacement session started after an end is never evicted by the old one.
func (m *sessionManager) remove(conversationID string, session *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[conversationID] == session {
		delete(m.sessions, conversationID)
	}
}
