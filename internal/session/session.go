// Package session holds the per-client session state: the signed-in
// user and the currently open chat. It replaces the global currentUser
// of earlier designs with an explicit object every service receives, so
// multiple sessions can coexist in one process (tests, tooling).
package session

import (
	"sync"

	"github.com/anonto42/chatbro/backend/internal/models"
)

// Session is written by the identity service (user) and the chat
// service (chat context); everything else only reads it. There is at
// most one open chat per session.
type Session struct {
	mu     sync.RWMutex
	user   *models.User
	chatID string
	friend *models.User
}

// New creates an empty Session
func New() *Session {
	return &Session{}
}

// User returns the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser publishes the signed-in user. Passing nil ends the session
// and drops any open chat with it.
func (s *Session) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if u == nil {
		s.chatID = ""
		s.friend = nil
	}
}

// Chat returns the open chat id and friend, or "" and nil.
func (s *Session) Chat() (string, *models.User) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID, s.friend
}

// SetChat records the open chat context, replacing any previous one.
func (s *Session) SetChat(chatID string, friend *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = chatID
	s.friend = friend
}

// ClearChat drops the open chat context.
func (s *Session) ClearChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = ""
	s.friend = nil
}
