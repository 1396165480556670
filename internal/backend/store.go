package backend

import (
	"context"
	"errors"
	"sync"
)

// Document is one row of a collection, decoded to a generic field map.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter is an equality constraint on a query.
type Filter struct {
	Field string
	Value any
}

// ErrNotExists is returned by point lookups of absent documents.
var ErrNotExists = errors.New("document does not exist")

type serverTimestampValue struct{}

// ServerTimestamp marks a field to be assigned by the backend at write
// time. Implementations translate it to their native mechanism.
var ServerTimestamp any = serverTimestampValue{}

type arrayUnionValue struct {
	values []any
}

// ArrayUnion marks a field write as a set union with the stored array.
// Adding an already-present element is a no-op.
func ArrayUnion(values ...any) any {
	return arrayUnionValue{values: values}
}

// Store is the document backend contract. Collection paths are
// slash-joined, e.g. "users" or "chats/<chatId>/messages".
//
// Set with merge=true is an upsert that preserves unspecified fields;
// with merge=false it overwrites the whole document. Update patches
// fields of an existing document and fails if it is missing. The three
// are distinct on purpose.
type Store interface {
	Get(ctx context.Context, path, id string) (*Document, error)
	// GetAll is a batched multi-get. The result is position-aligned with
	// ids; missing documents yield nil entries.
	GetAll(ctx context.Context, path string, ids []string) ([]*Document, error)
	Query(ctx context.Context, path string, filters []Filter, orderBy string) ([]*Document, error)
	Add(ctx context.Context, path string, data map[string]any) (string, error)
	Set(ctx context.Context, path, id string, data map[string]any, merge bool) error
	Update(ctx context.Context, path, id string, data map[string]any) error
	Delete(ctx context.Context, path, id string) error

	// Watch opens a live query. fn receives the full current result set
	// on registration and again after every change, never a diff. The
	// returned func tears the subscription down; delivery stops but
	// requests already in flight are unaffected.
	Watch(ctx context.Context, path string, filters []Filter, orderBy string, fn func([]*Document)) (func(), error)
	// WatchDoc is Watch for a single document; fn receives nil while the
	// document does not exist.
	WatchDoc(ctx context.Context, path, id string, fn func(*Document)) (func(), error)
}

// Authenticator yields an anonymous session with a stable opaque uid.
type Authenticator interface {
	// SignIn establishes (or resumes) the anonymous session.
	SignIn(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
	// OnStateChange fires fn once immediately with the current state
	// (empty uid when signed out) and again on every transition. The
	// returned func cancels the registration.
	OnStateChange(fn func(uid string)) func()
}

// stateBroadcaster implements the OnStateChange bookkeeping shared by
// the authenticator implementations.
type stateBroadcaster struct {
	mu        sync.Mutex
	uid       string
	listeners map[int]func(string)
	nextID    int
}

func newStateBroadcaster(uid string) *stateBroadcaster {
	return &stateBroadcaster{uid: uid, listeners: make(map[int]func(string))}
}

func (b *stateBroadcaster) current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uid
}

func (b *stateBroadcaster) set(uid string) {
	b.mu.Lock()
	b.uid = uid
	fns := make([]func(string), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(uid)
	}
}

func (b *stateBroadcaster) subscribe(fn func(string)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	uid := b.uid
	b.mu.Unlock()

	// Initial delivery with the current state, like the transitions.
	fn(uid)

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}
