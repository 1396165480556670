package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/session"
)

// ChatService manages the single open chat of a session: deterministic
// chat ids, the idempotent header write, message append and the ordered
// message subscription.
type ChatService struct {
	store    backend.Store
	session  *session.Session
	registry *registry.Registry
	local    *localstore.Store
}

// NewChatService creates a new ChatService
func NewChatService(store backend.Store, sess *session.Session, reg *registry.Registry, local *localstore.Store) *ChatService {
	return &ChatService{
		store:    store,
		session:  sess,
		registry: reg,
		local:    local,
	}
}

// ChatID derives the chat identifier for two participants. It is a pure
// function of the uid pair: both sides land on the same document with no
// discovery handshake.
func ChatID(uidA, uidB string) string {
	if uidA < uidB {
		return uidA + "_" + uidB
	}
	return uidB + "_" + uidA
}

// Open derives the chat id, merge-writes the chat header and makes the
// chat the session's current one. Safe to call every time a chat is
// opened; the caller must have closed the previous message subscription
// first.
func (s *ChatService) Open(ctx context.Context, friendUID string, friend *models.User) (string, error) {
	me := s.session.User()
	if me == nil {
		return "", fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	chatID := ChatID(me.UID, friendUID)

	header := map[string]any{
		"participants":  []any{me.UID, friendUID},
		"lastMessageAt": backend.ServerTimestamp,
	}
	if _, err := s.store.Get(ctx, chatsCollection, chatID); err == backend.ErrNotExists {
		header["createdAt"] = models.Timestamp()
	} else if err != nil {
		return "", fmt.Errorf("%w: reading chat header: %v", models.ErrBackend, err)
	}

	if err := s.store.Set(ctx, chatsCollection, chatID, header, true); err != nil {
		return "", fmt.Errorf("%w: writing chat header: %v", models.ErrBackend, err)
	}

	s.session.SetChat(chatID, friend)
	s.local.SetLastChat(chatID)
	log.Println("Chat opened:", chatID)
	return chatID, nil
}

// Send appends a message to the open chat, then refreshes the header
// preview. The two writes are not atomic; a crash in between leaves the
// message visible and the preview stale, which is acceptable since the
// header is a denormalized hint.
func (s *ChatService) Send(ctx context.Context, text string) error {
	chatID, _ := s.session.Chat()
	if chatID == "" {
		return fmt.Errorf("%w: no active chat", models.ErrValidation)
	}
	me := s.session.User()
	if me == nil {
		return fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message cannot be empty", models.ErrValidation)
	}

	_, err := s.store.Add(ctx, messagesCollection(chatID), map[string]any{
		"senderId":  me.UID,
		"text":      text,
		"timestamp": backend.ServerTimestamp,
		"createdAt": models.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("%w: sending message: %v", models.ErrBackend, err)
	}

	err = s.store.Set(ctx, chatsCollection, chatID, map[string]any{
		"lastMessage":   text,
		"lastMessageAt": backend.ServerTimestamp,
	}, true)
	if err != nil {
		return fmt.Errorf("%w: updating chat header: %v", models.ErrBackend, err)
	}

	return nil
}

// WatchMessages opens the standing subscription on the open chat's
// messages, ordered by the client-assigned createdAt key. Each message
// is tagged IsCurrentUser against the session user at delivery time.
// The returned token scopes teardown to this registration.
func (s *ChatService) WatchMessages(ctx context.Context, fn func([]models.Message)) (uint64, error) {
	chatID, _ := s.session.Chat()
	if chatID == "" {
		return 0, fmt.Errorf("%w: no active chat", models.ErrValidation)
	}

	stop, err := s.store.Watch(ctx, messagesCollection(chatID), nil, "createdAt", func(docs []*backend.Document) {
		var viewerUID string
		if me := s.session.User(); me != nil {
			viewerUID = me.UID
		}
		messages := make([]models.Message, 0, len(docs))
		for _, doc := range docs {
			messages = append(messages, messageFromDoc(doc, viewerUID))
		}
		fn(messages)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: subscribing to messages: %v", models.ErrBackend, err)
	}

	return s.registry.Register(registry.KeyChatMessages, stop), nil
}

// Close tears down the message subscription and clears the current-chat
// context. Must be called before opening a different chat or leaving
// the chat screen.
func (s *ChatService) Close() {
	s.registry.Unregister(registry.KeyChatMessages)
	s.session.ClearChat()
}

// Current returns the open chat id and friend, or "" and nil.
func (s *ChatService) Current() (string, *models.User) {
	return s.session.Chat()
}
