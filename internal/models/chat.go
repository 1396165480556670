package models

import "time"

// Chat is the denormalized header row of a two-party chat. Its id is
// derived from the participant uids, never random, so both sides always
// land on the same document.
type Chat struct {
	ID            string    `json:"id" firestore:"-"`
	Participants  []string  `json:"participants" firestore:"participants"`
	CreatedAt     string    `json:"createdAt" firestore:"createdAt"`
	LastMessage   string    `json:"lastMessage,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt" firestore:"lastMessageAt"`
}

// Message is one row of a chat's message subcollection. CreatedAt is the
// client-assigned ordering key; Timestamp is server-assigned. Rows are
// append-only.
type Message struct {
	ID        string    `json:"id" firestore:"-"`
	SenderID  string    `json:"senderId" firestore:"senderId"`
	Text      string    `json:"text" firestore:"text"`
	CreatedAt string    `json:"createdAt" firestore:"createdAt"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`

	// IsCurrentUser is computed at delivery time against the viewer's
	// session, never stored.
	IsCurrentUser bool `json:"isCurrentUser" firestore:"-"`
}

// OpenChatRequest defines the request body for opening a chat
type OpenChatRequest struct {
	FriendUID string `json:"friendUid" validate:"required"`
}

// SendMessageRequest defines the request body for sending a message
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}
