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

// IdentityService maps the anonymous auth session onto a persistent
// (code, name, icon) profile row and publishes the resolved user into
// the session.
type IdentityService struct {
	auth     backend.Authenticator
	store    backend.Store
	codes    *CodeGenerator
	local    *localstore.Store
	session  *session.Session
	registry *registry.Registry
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(auth backend.Authenticator, store backend.Store, codes *CodeGenerator,
	local *localstore.Store, sess *session.Session, reg *registry.Registry) *IdentityService {
	return &IdentityService{
		auth:     auth,
		store:    store,
		codes:    codes,
		local:    local,
		session:  sess,
		registry: reg,
	}
}

// SignIn authenticates anonymously and resolves the profile row.
// For an existing profile the stored name, code and icon are
// authoritative and the given name is ignored; a new profile takes the
// given name, a generated code and a random icon. Idempotent on
// repeated sign-in.
func (s *IdentityService) SignIn(ctx context.Context, displayName string) (*models.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", models.ErrValidation)
	}
	if len(name) > 20 {
		return nil, fmt.Errorf("%w: name must be 20 characters or less", models.ErrValidation)
	}

	uid, err := s.auth.SignIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: anonymous sign-in failed: %v", models.ErrBackend, err)
	}

	var user *models.User
	doc, err := s.store.Get(ctx, usersCollection, uid)
	switch {
	case err == nil:
		// Existing user: the stored profile wins.
		user = userFromDoc(uid, doc.Data)
		log.Println("Existing user, code:", user.Code)
	case err == backend.ErrNotExists:
		code, cerr := s.codes.Generate(ctx)
		if cerr != nil {
			return nil, cerr
		}
		user = &models.User{UID: uid, Name: name, Code: code, IconID: models.RandomIconID()}
		werr := s.store.Set(ctx, usersCollection, uid, map[string]any{
			"name":      user.Name,
			"code":      user.Code,
			"iconId":    user.IconID,
			"createdAt": models.Timestamp(),
		}, false)
		if werr != nil {
			return nil, fmt.Errorf("%w: storing user profile: %v", models.ErrBackend, werr)
		}
		log.Printf("User code stored: %s for user %s with icon %d\n", user.Code, user.Name, user.IconID)
	default:
		return nil, fmt.Errorf("%w: looking up user profile: %v", models.ErrBackend, err)
	}

	s.session.SetUser(user)
	s.local.SaveSession(user)
	return user, nil
}

// Logout deauthenticates and clears the session and local cache. The
// caller must have torn down all active subscriptions first; this is an
// ordering contract, not enforced here.
func (s *IdentityService) Logout(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("%w: sign-out failed: %v", models.ErrBackend, err)
	}
	s.local.ClearSession()
	s.session.SetUser(nil)
	log.Println("User logged out")
	return nil
}

// WatchAuthState is the sole source of truth for whether a session is
// live. fn fires once immediately and again on every auth transition:
// with the re-resolved profile on sign-in (nil if the profile row is
// gone) and with nil on sign-out.
func (s *IdentityService) WatchAuthState(ctx context.Context, fn func(*models.User)) {
	stop := s.auth.OnStateChange(func(uid string) {
		if uid == "" {
			s.session.SetUser(nil)
			fn(nil)
			return
		}

		doc, err := s.store.Get(ctx, usersCollection, uid)
		if err != nil {
			// Fail closed: a session without a profile row is not usable.
			if err != backend.ErrNotExists {
				log.Printf("Error fetching user data: %v\n", err)
			}
			fn(nil)
			return
		}

		user := userFromDoc(uid, doc.Data)
		s.session.SetUser(user)
		s.local.SaveSession(user)
		fn(user)
	})

	s.registry.Register(registry.KeyAuthState, stop)
}

// GetUser resolves a profile row by uid.
func (s *IdentityService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	doc, err := s.store.Get(ctx, usersCollection, uid)
	if err != nil {
		if err == backend.ErrNotExists {
			return nil, fmt.Errorf("%w: user profile not found", models.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: looking up user profile: %v", models.ErrBackend, err)
	}
	return userFromDoc(uid, doc.Data), nil
}

// UpdateProfile is the explicit settings update: the only path that
// changes the name of an existing user. The code is immutable and not
// touched.
func (s *IdentityService) UpdateProfile(ctx context.Context, name string, iconID int) (*models.User, error) {
	user := s.session.User()
	if user == nil {
		return nil, fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", models.ErrValidation)
	}
	if len(name) > 20 {
		return nil, fmt.Errorf("%w: name must be 20 characters or less", models.ErrValidation)
	}
	if iconID < 1 || iconID > models.IconCount {
		return nil, fmt.Errorf("%w: unknown icon id %d", models.ErrValidation, iconID)
	}

	err := s.store.Update(ctx, usersCollection, user.UID, map[string]any{
		"name":   name,
		"iconId": iconID,
	})
	if err != nil {
		if err == backend.ErrNotExists {
			return nil, fmt.Errorf("%w: user profile missing", models.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: saving settings: %v", models.ErrBackend, err)
	}

	updated := *user
	updated.Name = name
	updated.IconID = iconID
	s.session.SetUser(&updated)
	s.local.SaveSession(&updated)
	log.Println("Settings saved")
	return &updated, nil
}
