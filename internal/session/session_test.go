package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/session"
)

func TestSetUserNilClearsChat(t *testing.T) {
	s := session.New()
	alice := &models.User{UID: "a", Name: "Alice"}
	bob := &models.User{UID: "b", Name: "Bob"}

	s.SetUser(alice)
	s.SetChat("a_b", bob)

	chatID, friend := s.Chat()
	assert.Equal(t, "a_b", chatID)
	assert.Equal(t, bob, friend)

	s.SetUser(nil)

	assert.Nil(t, s.User())
	chatID, friend = s.Chat()
	assert.Empty(t, chatID, "ending the session drops the open chat")
	assert.Nil(t, friend)
}

func TestClearChatKeepsUser(t *testing.T) {
	s := session.New()
	alice := &models.User{UID: "a", Name: "Alice"}

	s.SetUser(alice)
	s.SetChat("a_b", &models.User{UID: "b"})
	s.ClearChat()

	assert.Equal(t, alice, s.User())
	chatID, friend := s.Chat()
	assert.Empty(t, chatID)
	assert.Nil(t, friend)
}
