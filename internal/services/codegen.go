package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/models"
)

const defaultMaxCodeAttempts = 10

// CodeGenerator draws 4-digit friend codes and checks them against the
// users collection before handing them out. Every attempt is a full
// round trip; two concurrent signups can still race the same code
// between check and write, which only a backend constraint could close.
type CodeGenerator struct {
	store       backend.Store
	maxAttempts int
}

// NewCodeGenerator creates a new CodeGenerator
func NewCodeGenerator(store backend.Store) *CodeGenerator {
	return &CodeGenerator{store: store, maxAttempts: defaultMaxCodeAttempts}
}

// Generate returns a 4-digit code not in use by any existing user at
// the time of the check, retrying on collision up to the attempt limit.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code := randomCode()

		docs, err := g.store.Query(ctx, usersCollection, []backend.Filter{{Field: "code", Value: code}}, "")
		if err != nil {
			return "", fmt.Errorf("%w: checking code existence: %v", models.ErrBackend, err)
		}
		if len(docs) == 0 {
			return code, nil
		}

		log.Printf("Code collision detected (%s), retrying... (%d/%d)\n", code, attempt, g.maxAttempts)
	}

	return "", fmt.Errorf("%w: failed to generate unique code after %d attempts", models.ErrExhaustedAttempts, g.maxAttempts)
}

// randomCode draws from the 9000-value numeric space 1000-9999.
func randomCode() string {
	return strconv.Itoa(1000 + rand.Intn(9000))
}
