package services_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/services"
)

var codePattern = regexp.MustCompile(`^[1-9][0-9]{3}$`)

// seedCodes registers fake users holding every code in [from, to].
func seedCodes(t *testing.T, store *backend.MemoryStore, from, to int) {
	t.Helper()
	ctx := context.Background()
	for code := from; code <= to; code++ {
		uid := fmt.Sprintf("seed-%d", code)
		err := store.Set(ctx, "users", uid, map[string]any{
			"name": "seed",
			"code": fmt.Sprintf("%d", code),
		}, false)
		require.NoError(t, err)
	}
}

func TestCodeGenerator_Format(t *testing.T) {
	gen := services.NewCodeGenerator(backend.NewMemoryStore())

	for i := 0; i < 50; i++ {
		code, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestCodeGenerator_AvoidsExistingCodes(t *testing.T) {
	store := backend.NewMemoryStore()
	seedCodes(t, store, 1000, 4999)
	gen := services.NewCodeGenerator(store)

	for i := 0; i < 25; i++ {
		code, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, code, "5000", "generated code must not collide with a seeded one")
	}
}

func TestCodeGenerator_ExhaustedAttempts(t *testing.T) {
	store := backend.NewMemoryStore()
	seedCodes(t, store, 1000, 9999)
	gen := services.NewCodeGenerator(store)

	_, err := gen.Generate(context.Background())
	assert.ErrorIs(t, err, models.ErrExhaustedAttempts)
}
