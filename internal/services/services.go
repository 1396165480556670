// Package services implements the identity, pairing and chat protocol
// on top of the pluggable document backend. All realtime subscriptions
// the services open are routed through the registry so no listener can
// be duplicated or leak across screen transitions.
package services

import (
	"time"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/models"
)

// Collection layout in the document backend.
const (
	usersCollection    = "users"
	requestsCollection = "friendRequests"
	friendsCollection  = "friends"
	chatsCollection    = "chats"
)

func messagesCollection(chatID string) string {
	return chatsCollection + "/" + chatID + "/messages"
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func timeField(data map[string]any, key string) time.Time {
	v, _ := data[key].(time.Time)
	return v
}

func stringSliceField(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func userFromDoc(uid string, data map[string]any) *models.User {
	u := &models.User{
		UID:    uid,
		Name:   stringField(data, "name"),
		Code:   stringField(data, "code"),
		IconID: intField(data, "iconId"),
	}
	if u.IconID == 0 {
		u.IconID = 1
	}
	return u
}

func requestFromDoc(doc *backend.Document) models.FriendRequest {
	return models.FriendRequest{
		ID:        doc.ID,
		From:      stringField(doc.Data, "from"),
		FromName:  stringField(doc.Data, "fromName"),
		FromCode:  stringField(doc.Data, "fromCode"),
		To:        stringField(doc.Data, "to"),
		ToName:    stringField(doc.Data, "toName"),
		Status:    stringField(doc.Data, "status"),
		CreatedAt: stringField(doc.Data, "createdAt"),
	}
}

func messageFromDoc(doc *backend.Document, viewerUID string) models.Message {
	senderID := stringField(doc.Data, "senderId")
	return models.Message{
		ID:            doc.ID,
		SenderID:      senderID,
		Text:          stringField(doc.Data, "text"),
		CreatedAt:     stringField(doc.Data, "createdAt"),
		Timestamp:     timeField(doc.Data, "timestamp"),
		IsCurrentUser: senderID != "" && senderID == viewerUID,
	}
}
