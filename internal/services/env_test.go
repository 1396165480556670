package services_test

import (
	"testing"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/services"
	"github.com/anonto42/chatbro/backend/internal/session"
)

// client bundles one session's worth of wired services. Several clients
// can share one store to simulate two users of the same backend.
type client struct {
	store    *backend.MemoryStore
	auth     *backend.MemoryAuthenticator
	sess     *session.Session
	reg      *registry.Registry
	local    *localstore.Store
	identity *services.IdentityService
	pairing  *services.PairingService
	chat     *services.ChatService
}

func newClient(t *testing.T, store *backend.MemoryStore, restoredUID string) *client {
	t.Helper()

	sess := session.New()
	reg := registry.New()
	local := localstore.New(t.TempDir())
	auth := backend.NewMemoryAuthenticator(restoredUID)
	codes := services.NewCodeGenerator(store)

	return &client{
		store:    store,
		auth:     auth,
		sess:     sess,
		reg:      reg,
		local:    local,
		identity: services.NewIdentityService(auth, store, codes, local, sess, reg),
		pairing:  services.NewPairingService(store, sess, reg),
		chat:     services.NewChatService(store, sess, reg, local),
	}
}

func newTestClient(t *testing.T) *client {
	t.Helper()
	return newClient(t, backend.NewMemoryStore(), "")
}
