package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/chatbro/backend/internal/registry"
)

func TestRegister_TearsDownPreviousHolder(t *testing.T) {
	r := registry.New()

	firstStopped := 0
	r.Register(registry.KeyChatMessages, func() { firstStopped++ })
	assert.Equal(t, 0, firstStopped)

	secondStopped := 0
	r.Register(registry.KeyChatMessages, func() { secondStopped++ })

	assert.Equal(t, 1, firstStopped, "overwriting a key stops the previous subscription")
	assert.Equal(t, 0, secondStopped)
	assert.Equal(t, 1, r.Count(), "at most one live subscription per key")
}

func TestRegister_DistinctKeysCoexist(t *testing.T) {
	r := registry.New()

	stopped := 0
	r.Register(registry.KeyFriendRequests, func() { stopped++ })
	r.Register(registry.KeyFriendsList, func() { stopped++ })

	assert.Equal(t, 0, stopped)
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has(registry.KeyFriendRequests))
	assert.True(t, r.Has(registry.KeyFriendsList))
}

func TestUnregisterToken_StaleOwnerIsNoOp(t *testing.T) {
	r := registry.New()

	aStopped := 0
	tokenA := r.Register(registry.KeyFriendRequests, func() { aStopped++ })

	bStopped := 0
	tokenB := r.Register(registry.KeyFriendRequests, func() { bStopped++ })
	require.Equal(t, 1, aStopped)

	// The superseded owner's teardown must not touch the live holder.
	r.UnregisterToken(registry.KeyFriendRequests, tokenA)
	assert.Equal(t, 0, bStopped)
	assert.True(t, r.Has(registry.KeyFriendRequests))

	r.UnregisterToken(registry.KeyFriendRequests, tokenB)
	assert.Equal(t, 1, bStopped)
	assert.False(t, r.Has(registry.KeyFriendRequests))

	// Tokens are single-use once released.
	r.UnregisterToken(registry.KeyFriendRequests, tokenB)
	assert.Equal(t, 1, bStopped)
}

func TestUnregister(t *testing.T) {
	r := registry.New()

	stopped := 0
	r.Register(registry.KeyFriendsList, func() { stopped++ })

	r.Unregister(registry.KeyFriendsList)
	assert.Equal(t, 1, stopped)
	assert.False(t, r.Has(registry.KeyFriendsList))

	// Unregistering an absent key is a no-op.
	r.Unregister(registry.KeyFriendsList)
	assert.Equal(t, 1, stopped)
}

func TestUnregisterAll(t *testing.T) {
	r := registry.New()

	stopped := 0
	r.Register(registry.KeyAuthState, func() { stopped++ })
	r.Register(registry.KeyFriendRequests, func() { stopped++ })
	r.Register(registry.KeyChatMessages, func() { stopped++ })

	r.UnregisterAll()

	assert.Equal(t, 3, stopped)
	assert.Equal(t, 0, r.Count())
}
