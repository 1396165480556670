package backend

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore. This is the
// primary production backend; live queries map directly onto Firestore
// snapshot listeners.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// firestoreData translates the marker values to their Firestore natives.
func firestoreData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case serverTimestampValue:
			out[k] = firestore.ServerTimestamp
		case arrayUnionValue:
			out[k] = firestore.ArrayUnion(t.values...)
		default:
			out[k] = v
		}
	}
	return out
}

func (s *FirestoreStore) Get(ctx context.Context, path, id string) (*Document, error) {
	snap, err := s.client.Collection(path).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotExists
		}
		return nil, fmt.Errorf("firestore get %s/%s: %w", path, id, err)
	}
	return &Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *FirestoreStore) GetAll(ctx context.Context, path string, ids []string) ([]*Document, error) {
	col := s.client.Collection(path)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = col.Doc(id)
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("firestore batched get %s: %w", path, err)
	}

	docs := make([]*Document, len(snaps))
	for i, snap := range snaps {
		if snap.Exists() {
			docs[i] = &Document{ID: snap.Ref.ID, Data: snap.Data()}
		}
	}
	return docs, nil
}

func (s *FirestoreStore) Query(ctx context.Context, path string, filters []Filter, orderBy string) ([]*Document, error) {
	it := s.buildQuery(path, filters, orderBy).Documents(ctx)
	defer it.Stop()

	var docs []*Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore query %s: %w", path, err)
		}
		docs = append(docs, &Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *FirestoreStore) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(path).Add(ctx, firestoreData(data))
	if err != nil {
		return "", fmt.Errorf("firestore add %s: %w", path, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, path, id string, data map[string]any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := s.client.Collection(path).Doc(id).Set(ctx, firestoreData(data), opts...); err != nil {
		return fmt.Errorf("firestore set %s/%s: %w", path, id, err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, path, id string, data map[string]any) error {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range firestoreData(data) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := s.client.Collection(path).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotExists
		}
		return fmt.Errorf("firestore update %s/%s: %w", path, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, path, id string) error {
	if _, err := s.client.Collection(path).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", path, id, err)
	}
	return nil
}

func (s *FirestoreStore) Watch(ctx context.Context, path string, filters []Filter, orderBy string, fn func([]*Document)) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)
	it := s.buildQuery(path, filters, orderBy).Snapshots(wctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("Firestore watch on %s terminated: %v\n", path, err)
				}
				return
			}

			var docs []*Document
			for {
				d, derr := snap.Documents.Next()
				if derr == iterator.Done {
					break
				}
				if derr != nil {
					log.Printf("Firestore watch on %s: reading snapshot: %v\n", path, derr)
					return
				}
				docs = append(docs, &Document{ID: d.Ref.ID, Data: d.Data()})
			}
			fn(docs)
		}
	}()

	return cancel, nil
}

func (s *FirestoreStore) WatchDoc(ctx context.Context, path, id string, fn func(*Document)) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(path).Doc(id).Snapshots(wctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("Firestore doc watch on %s/%s terminated: %v\n", path, id, err)
				}
				return
			}
			if snap.Exists() {
				fn(&Document{ID: snap.Ref.ID, Data: snap.Data()})
			} else {
				fn(nil)
			}
		}
	}()

	return cancel, nil
}

func (s *FirestoreStore) buildQuery(path string, filters []Filter, orderBy string) firestore.Query {
	q := s.client.Collection(path).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}
	if orderBy != "" {
		q = q.OrderBy(orderBy, firestore.Asc)
	}
	return q
}

// FirebaseAuthenticator implements Authenticator on the Firebase Admin
// SDK. Anonymous sessions are users with no provider data; the uid of a
// previously persisted session can be passed in to resume it.
type FirebaseAuthenticator struct {
	client *auth.Client
	state  *stateBroadcaster
}

// NewFirebaseAuthenticator creates a new FirebaseAuthenticator.
// restoredUID may be empty when no prior session was persisted.
func NewFirebaseAuthenticator(client *auth.Client, restoredUID string) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{client: client, state: newStateBroadcaster(restoredUID)}
}

func (a *FirebaseAuthenticator) SignIn(ctx context.Context) (string, error) {
	if uid := a.state.current(); uid != "" {
		// Resume the persisted session if the user still exists upstream.
		if _, err := a.client.GetUser(ctx, uid); err == nil {
			a.state.set(uid)
			return uid, nil
		}
		log.Printf("Persisted session %s no longer valid, creating a new one\n", uid)
	}

	user, err := a.client.CreateUser(ctx, &auth.UserToCreate{})
	if err != nil {
		return "", fmt.Errorf("firebase anonymous sign-in: %w", err)
	}

	log.Println("Anonymous auth successful:", user.UID)
	a.state.set(user.UID)
	return user.UID, nil
}

func (a *FirebaseAuthenticator) SignOut(ctx context.Context) error {
	a.state.set("")
	return nil
}

func (a *FirebaseAuthenticator) OnStateChange(fn func(uid string)) func() {
	return a.state.subscribe(fn)
}
