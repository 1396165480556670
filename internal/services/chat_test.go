package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
)

func TestChatID_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"abc", "xyz"},
		{"xyz", "abc"},
		{"user-1", "user-2"},
		{"aaaa", "aaab"},
	}
	for _, p := range pairs {
		assert.Equal(t, services.ChatID(p[0], p[1]), services.ChatID(p[1], p[0]))
	}
	assert.Equal(t, "abc_xyz", services.ChatID("xyz", "abc"))
}

func TestOpenChat_Idempotent(t *testing.T) {
	alice, _, _, bobUser := twoUsers(t)
	ctx := context.Background()

	chatID, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)

	header1, err := alice.store.Get(ctx, "chats", chatID)
	require.NoError(t, err)
	created := header1.Data["createdAt"]

	chatID2, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)
	assert.Equal(t, chatID, chatID2, "same participants always reuse one chat")

	headers, err := alice.store.Query(ctx, "chats", nil, "")
	require.NoError(t, err)
	assert.Len(t, headers, 1, "no duplicate chat header row")

	header2, err := alice.store.Get(ctx, "chats", chatID)
	require.NoError(t, err)
	assert.Equal(t, created, header2.Data["createdAt"], "createdAt is only written once")
}

func TestOpenChat_RequiresAuth(t *testing.T) {
	c := newTestClient(t)
	_, err := c.chat.Open(context.Background(), "some-uid", &models.User{UID: "some-uid"})
	assert.ErrorIs(t, err, models.ErrAuth)
}

func TestSendMessage_Validation(t *testing.T) {
	alice, _, _, bobUser := twoUsers(t)
	ctx := context.Background()

	err := alice.chat.Send(ctx, "hello")
	assert.ErrorIs(t, err, models.ErrValidation, "sending requires an open chat")

	chatID, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)

	assert.ErrorIs(t, alice.chat.Send(ctx, ""), models.ErrValidation)
	assert.ErrorIs(t, alice.chat.Send(ctx, "   \t "), models.ErrValidation)

	rows, err := alice.store.Query(ctx, "chats/"+chatID+"/messages", nil, "")
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected sends must not produce message rows")
}

func TestSendAndWatchMessages(t *testing.T) {
	alice, bob, aliceUser, bobUser := twoUsers(t)
	ctx := context.Background()

	_, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)

	var aliceSnaps [][]models.Message
	_, err = alice.chat.WatchMessages(ctx, func(msgs []models.Message) {
		aliceSnaps = append(aliceSnaps, msgs)
	})
	require.NoError(t, err)

	require.NoError(t, alice.chat.Send(ctx, "hi"))
	require.NoError(t, alice.chat.Send(ctx, "  yo  "))

	latest := aliceSnaps[len(aliceSnaps)-1]
	require.Len(t, latest, 2)
	assert.Equal(t, "hi", latest[0].Text)
	assert.Equal(t, "yo", latest[1].Text, "message text is trimmed")
	assert.True(t, latest[0].IsCurrentUser)
	assert.True(t, latest[1].IsCurrentUser)

	// The other participant opens the same chat and sees the same order,
	// tagged relative to their own session.
	_, err = bob.chat.Open(ctx, aliceUser.UID, aliceUser)
	require.NoError(t, err)

	var bobSnaps [][]models.Message
	_, err = bob.chat.WatchMessages(ctx, func(msgs []models.Message) {
		bobSnaps = append(bobSnaps, msgs)
	})
	require.NoError(t, err)

	initial := bobSnaps[0]
	require.Len(t, initial, 2)
	assert.Equal(t, "hi", initial[0].Text)
	assert.Equal(t, "yo", initial[1].Text)
	assert.False(t, initial[0].IsCurrentUser)
	assert.False(t, initial[1].IsCurrentUser)
}

func TestSendMessage_UpdatesHeaderPreview(t *testing.T) {
	alice, _, _, bobUser := twoUsers(t)
	ctx := context.Background()

	chatID, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)
	require.NoError(t, alice.chat.Send(ctx, "latest words"))

	header, err := alice.store.Get(ctx, "chats", chatID)
	require.NoError(t, err)
	assert.Equal(t, "latest words", header.Data["lastMessage"])
}

func TestCloseChat(t *testing.T) {
	alice, _, _, bobUser := twoUsers(t)
	ctx := context.Background()

	_, err := alice.chat.Open(ctx, bobUser.UID, bobUser)
	require.NoError(t, err)
	_, err = alice.chat.WatchMessages(ctx, func([]models.Message) {})
	require.NoError(t, err)
	assert.True(t, alice.reg.Has(registry.KeyChatMessages))

	alice.chat.Close()

	assert.False(t, alice.reg.Has(registry.KeyChatMessages))
	chatID, friend := alice.chat.Current()
	assert.Empty(t, chatID)
	assert.Nil(t, friend)

	assert.ErrorIs(t, alice.chat.Send(ctx, "too late"), models.ErrValidation)
}
