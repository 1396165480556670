package localstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/chatbro/backend/internal/localstore"
	"github.com/anonto42/chatbro/backend/internal/models"
)

func TestRoundtripAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	user := &models.User{UID: "u1", Name: "Alice", Code: "1234", IconID: 3}

	s := localstore.New(dir)
	s.SaveSession(user)
	s.SetLastChat("u1_u2")
	s.SetScrollPos("u1_u2", 420)

	// A fresh instance over the same directory sees everything back.
	s2 := localstore.New(dir)
	got := s2.Session()
	require.NotNil(t, got)
	assert.Equal(t, *user, *got)
	assert.Equal(t, "u1_u2", s2.LastChat())
	assert.Equal(t, 420, s2.ScrollPos("u1_u2"))
}

func TestEmptyState(t *testing.T) {
	s := localstore.New(t.TempDir())

	assert.Nil(t, s.Session())
	assert.Empty(t, s.LastChat())
	assert.Zero(t, s.ScrollPos("anything"))
}

func TestClearSession(t *testing.T) {
	dir := t.TempDir()

	s := localstore.New(dir)
	s.SaveSession(&models.User{UID: "u1", Name: "Alice", Code: "1234", IconID: 1})
	s.SetLastChat("u1_u2")
	s.SetScrollPos("u1_u2", 7)

	s.ClearSession()

	assert.Nil(t, s.Session())
	assert.Empty(t, s.LastChat())
	assert.Zero(t, s.ScrollPos("u1_u2"))

	// The clear is persisted too.
	s2 := localstore.New(dir)
	assert.Nil(t, s2.Session())
	assert.Empty(t, s2.LastChat())
}

func TestSessionIsolatedFromCallerMutation(t *testing.T) {
	s := localstore.New(t.TempDir())

	u := &models.User{UID: "u1", Name: "Alice", Code: "1234", IconID: 1}
	s.SaveSession(u)

	// Mutating the saved pointer must not reach the cache.
	u.Name = "Mallory"
	got := s.Session()
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	// Nor must mutating the returned copy.
	got.Name = "Mallory"
	assert.Equal(t, "Alice", s.Session().Name)
}

func TestCorruptStateFileStartsFresh(t *testing.T) {
	dir := t.TempDir()

	s := localstore.New(dir)
	s.SaveSession(&models.User{UID: "u1", Name: "Alice", Code: "1234", IconID: 1})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o644))

	s2 := localstore.New(dir)
	assert.Nil(t, s2.Session())
}
