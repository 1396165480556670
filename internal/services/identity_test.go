package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/chatbro/backend/internal/models"
)

func TestSignIn_NewUser(t *testing.T) {
	c := newTestClient(t)

	user, err := c.identity.SignIn(context.Background(), "  Alice  ")
	require.NoError(t, err)

	assert.NotEmpty(t, user.UID)
	assert.Equal(t, "Alice", user.Name, "name must be trimmed")
	assert.Regexp(t, codePattern, user.Code)
	assert.GreaterOrEqual(t, user.IconID, 1)
	assert.LessOrEqual(t, user.IconID, models.IconCount)

	// The profile row is persisted and the session published.
	stored, err := c.identity.GetUser(context.Background(), user.UID)
	require.NoError(t, err)
	assert.Equal(t, user, stored)
	assert.Equal(t, user, c.sess.User())
	assert.Equal(t, user, c.local.Session())
}

func TestSignIn_RejectsInvalidName(t *testing.T) {
	c := newTestClient(t)

	_, err := c.identity.SignIn(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.identity.SignIn(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.identity.SignIn(context.Background(), "this name is far too long")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSignIn_ExistingUserIgnoresGivenName(t *testing.T) {
	c := newTestClient(t)
	alice, err := c.identity.SignIn(context.Background(), "Alice")
	require.NoError(t, err)

	// Same backend, new session, restored anonymous uid.
	c2 := newClient(t, c.store, alice.UID)
	again, err := c2.identity.SignIn(context.Background(), "Somebody Else")
	require.NoError(t, err)

	assert.Equal(t, alice.UID, again.UID)
	assert.Equal(t, "Alice", again.Name, "stored name is authoritative for returning users")
	assert.Equal(t, alice.Code, again.Code)
	assert.Equal(t, alice.IconID, again.IconID)
}

func TestWatchAuthState_RestoresExistingSession(t *testing.T) {
	c := newTestClient(t)
	alice, err := c.identity.SignIn(context.Background(), "Alice")
	require.NoError(t, err)

	// New session with no sign-in call at all: the auth-state listener
	// alone must re-resolve the profile.
	c2 := newClient(t, c.store, alice.UID)
	var got []*models.User
	c2.identity.WatchAuthState(context.Background(), func(u *models.User) {
		got = append(got, u)
	})

	require.Len(t, got, 1, "listener must fire once at startup")
	require.NotNil(t, got[0])
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, alice.Code, got[0].Code)
	assert.Equal(t, got[0], c2.sess.User())
}

func TestWatchAuthState_MissingProfileFailsClosed(t *testing.T) {
	c := newClient(t, newTestClient(t).store, "uid-without-profile")

	var got []*models.User
	c.identity.WatchAuthState(context.Background(), func(u *models.User) {
		got = append(got, u)
	})

	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestWatchAuthState_DeliversNilOnLogout(t *testing.T) {
	c := newTestClient(t)
	_, err := c.identity.SignIn(context.Background(), "Alice")
	require.NoError(t, err)

	var got []*models.User
	c.identity.WatchAuthState(context.Background(), func(u *models.User) {
		got = append(got, u)
	})
	require.Len(t, got, 1)
	require.NotNil(t, got[0])

	require.NoError(t, c.identity.Logout(context.Background()))

	require.Len(t, got, 2)
	assert.Nil(t, got[1])
	assert.Nil(t, c.sess.User())
	assert.Nil(t, c.local.Session())
}

func TestUpdateProfile(t *testing.T) {
	c := newTestClient(t)
	alice, err := c.identity.SignIn(context.Background(), "Alice")
	require.NoError(t, err)

	updated, err := c.identity.UpdateProfile(context.Background(), "Alicia", 7)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, 7, updated.IconID)
	assert.Equal(t, alice.Code, updated.Code, "the code is immutable")

	stored, err := c.identity.GetUser(context.Background(), alice.UID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
	assert.Equal(t, updated, c.sess.User())
}

func TestUpdateProfile_Validation(t *testing.T) {
	c := newTestClient(t)

	_, err := c.identity.UpdateProfile(context.Background(), "Alice", 1)
	assert.ErrorIs(t, err, models.ErrAuth, "requires a signed-in session")

	_, err = c.identity.SignIn(context.Background(), "Alice")
	require.NoError(t, err)

	_, err = c.identity.UpdateProfile(context.Background(), "   ", 1)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.identity.UpdateProfile(context.Background(), "Alice", 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.identity.UpdateProfile(context.Background(), "Alice", models.IconCount+1)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetUser_NotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.identity.GetUser(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
