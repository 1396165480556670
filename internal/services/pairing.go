package services

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	"github.com/anonto42/chatbro/backend/internal/backend"
	"github.com/anonto42/chatbro/backend/internal/models"
	"github.com/anonto42/chatbro/backend/internal/registry"
	"github.com/anonto42/chatbro/backend/internal/session"
)

// PairingService runs the friend-request lifecycle: propose by code,
// accept into symmetric friendship edges, reject by deletion. Resolved
// requests are deleted, not archived.
type PairingService struct {
	store    backend.Store
	session  *session.Session
	registry *registry.Registry
	validate *validator.Validate
}

// NewPairingService creates a new PairingService
func NewPairingService(store backend.Store, sess *session.Session, reg *registry.Registry) *PairingService {
	return &PairingService{
		store:    store,
		session:  sess,
		registry: reg,
		validate: validator.New(),
	}
}

// SendFriendRequest looks up the holder of code and files a pending
// request. The duplicate and already-friends checks are advisory reads
// before the write; two tabs racing can still file twice.
func (s *PairingService) SendFriendRequest(ctx context.Context, code string) (*models.User, error) {
	me := s.session.User()
	if me == nil {
		return nil, fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	if err := s.validate.Var(code, "required,len=4,numeric"); err != nil {
		return nil, fmt.Errorf("%w: invalid code, please enter a 4-digit code", models.ErrValidation)
	}

	docs, err := s.store.Query(ctx, usersCollection, []backend.Filter{{Field: "code", Value: code}}, "")
	if err != nil {
		return nil, fmt.Errorf("%w: looking up code: %v", models.ErrBackend, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no user found with this code", models.ErrNotFound)
	}
	target := userFromDoc(docs[0].ID, docs[0].Data)

	if target.UID == me.UID {
		return nil, fmt.Errorf("%w: you cannot add yourself as a friend", models.ErrValidation)
	}

	friendsDoc, err := s.store.Get(ctx, friendsCollection, me.UID)
	if err != nil && err != backend.ErrNotExists {
		return nil, fmt.Errorf("%w: reading friends list: %v", models.ErrBackend, err)
	}
	if friendsDoc != nil {
		for _, uid := range stringSliceField(friendsDoc.Data, "friends") {
			if uid == target.UID {
				return nil, fmt.Errorf("%w: you are already friends with this user", models.ErrConflict)
			}
		}
	}

	existing, err := s.store.Query(ctx, requestsCollection, []backend.Filter{
		{Field: "from", Value: me.UID},
		{Field: "to", Value: target.UID},
		{Field: "status", Value: models.StatusPending},
	}, "")
	if err != nil {
		return nil, fmt.Errorf("%w: checking existing requests: %v", models.ErrBackend, err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: friend request already sent", models.ErrConflict)
	}

	_, err = s.store.Add(ctx, requestsCollection, map[string]any{
		"from":      me.UID,
		"fromName":  me.Name,
		"fromCode":  me.Code,
		"to":        target.UID,
		"toName":    target.Name,
		"status":    models.StatusPending,
		"createdAt": models.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating friend request: %v", models.ErrBackend, err)
	}

	log.Println("Friend request sent to:", target.Name)
	return target, nil
}

// WatchFriendRequests opens the standing subscription on pending
// requests addressed to the current user. fn receives the full current
// set on every change. The returned token scopes teardown to this
// registration; see Registry.UnregisterToken.
func (s *PairingService) WatchFriendRequests(ctx context.Context, fn func([]models.FriendRequest)) (uint64, error) {
	me := s.session.User()
	if me == nil {
		return 0, fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	stop, err := s.store.Watch(ctx, requestsCollection, []backend.Filter{
		{Field: "to", Value: me.UID},
		{Field: "status", Value: models.StatusPending},
	}, "", func(docs []*backend.Document) {
		requests := make([]models.FriendRequest, 0, len(docs))
		for _, doc := range docs {
			requests = append(requests, requestFromDoc(doc))
		}
		fn(requests)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: subscribing to friend requests: %v", models.ErrBackend, err)
	}

	return s.registry.Register(registry.KeyFriendRequests, stop), nil
}

// AcceptFriendRequest writes the friendship edge on both participants'
// friend-set records and deletes the request row. The union writes are
// idempotent. A crash between the writes leaves an asymmetric edge and
// a dangling request; there is no compensating transaction.
func (s *PairingService) AcceptFriendRequest(ctx context.Context, requestID, fromUID string) error {
	me := s.session.User()
	if me == nil {
		return fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	err := s.store.Set(ctx, friendsCollection, me.UID, map[string]any{
		"friends": backend.ArrayUnion(fromUID),
	}, true)
	if err != nil {
		return fmt.Errorf("%w: writing friendship edge: %v", models.ErrBackend, err)
	}

	err = s.store.Set(ctx, friendsCollection, fromUID, map[string]any{
		"friends": backend.ArrayUnion(me.UID),
	}, true)
	if err != nil {
		return fmt.Errorf("%w: writing friendship edge: %v", models.ErrBackend, err)
	}

	if err := s.store.Delete(ctx, requestsCollection, requestID); err != nil {
		return fmt.Errorf("%w: deleting friend request: %v", models.ErrBackend, err)
	}

	log.Println("Friend request accepted")
	return nil
}

// RejectFriendRequest deletes the request row unconditionally. Anyone
// holding a request id can delete it; restricting this to the recipient
// would be a server-side rule.
func (s *PairingService) RejectFriendRequest(ctx context.Context, requestID string) error {
	if err := s.store.Delete(ctx, requestsCollection, requestID); err != nil {
		return fmt.Errorf("%w: deleting friend request: %v", models.ErrBackend, err)
	}
	log.Println("Friend request rejected")
	return nil
}

// WatchFriendsList opens the standing subscription on the current
// user's friend set. Every snapshot is hydrated with one batched
// multi-get; a uid whose profile row is gone becomes a tombstone entry
// with Missing set rather than being dropped.
func (s *PairingService) WatchFriendsList(ctx context.Context, fn func([]models.Friend)) (uint64, error) {
	me := s.session.User()
	if me == nil {
		return 0, fmt.Errorf("%w: user not authenticated", models.ErrAuth)
	}

	stop, err := s.store.WatchDoc(ctx, friendsCollection, me.UID, func(doc *backend.Document) {
		if doc == nil {
			fn([]models.Friend{})
			return
		}

		uids := stringSliceField(doc.Data, "friends")
		if len(uids) == 0 {
			fn([]models.Friend{})
			return
		}

		profiles, err := s.store.GetAll(ctx, usersCollection, uids)
		if err != nil {
			log.Printf("Error hydrating friends list: %v\n", err)
			return
		}

		friends := make([]models.Friend, 0, len(uids))
		for i, p := range profiles {
			if p == nil {
				friends = append(friends, models.Friend{User: models.User{UID: uids[i]}, Missing: true})
				continue
			}
			friends = append(friends, models.Friend{User: *userFromDoc(p.ID, p.Data)})
		}
		fn(friends)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: subscribing to friends list: %v", models.ErrBackend, err)
	}

	return s.registry.Register(registry.KeyFriendsList, stop), nil
}

// CleanupFriendListeners tears down both friends-screen subscriptions.
func (s *PairingService) CleanupFriendListeners() {
	s.registry.Unregister(registry.KeyFriendRequests)
	s.registry.Unregister(registry.KeyFriendsList)
}
