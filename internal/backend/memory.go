package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory. It backs the test
// suites and the BACKEND=memory development mode. Watch callbacks are
// delivered synchronously after every mutation of the watched path.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]map[string]map[string]any // path -> id -> fields
	watchers map[int]*memWatcher
	nextID   int
}

type memWatcher struct {
	path    string
	docID   string // set for single-doc watchers
	single  bool
	filters []Filter
	orderBy string
	listFn  func([]*Document)
	docFn   func(*Document)
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]map[string]map[string]any),
		watchers: make(map[int]*memWatcher),
	}
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if arr, ok := v.([]any); ok {
			cp := make([]any, len(arr))
			copy(cp, arr)
			out[k] = cp
		} else {
			out[k] = v
		}
	}
	return out
}

// applyField resolves marker values against the current field content.
func applyField(fields map[string]any, key string, value any) {
	switch t := value.(type) {
	case serverTimestampValue:
		fields[key] = time.Now().UTC()
	case arrayUnionValue:
		existing, _ := fields[key].([]any)
		for _, v := range t.values {
			present := false
			for _, e := range existing {
				if e == v {
					present = true
					break
				}
			}
			if !present {
				existing = append(existing, v)
			}
		}
		fields[key] = existing
	default:
		fields[key] = value
	}
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if fields[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func less(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return av < bv
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Before(bv)
	case int:
		bv, _ := b.(int)
		return av < bv
	default:
		return false
	}
}

func (s *MemoryStore) snapshotLocked(path string, filters []Filter, orderBy string) []*Document {
	var docs []*Document
	for id, fields := range s.data[path] {
		if matches(fields, filters) {
			docs = append(docs, &Document{ID: id, Data: cloneFields(fields)})
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if orderBy != "" && docs[i].Data[orderBy] != docs[j].Data[orderBy] {
			return less(docs[i].Data[orderBy], docs[j].Data[orderBy])
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// notify collects the pending deliveries for every watcher of path and
// runs them after the lock is released, so callbacks are free to call
// back into the store.
func (s *MemoryStore) notify(path string) {
	s.mu.Lock()
	var pending []func()
	for _, w := range s.watchers {
		if w.path != path {
			continue
		}
		if w.single {
			var doc *Document
			if fields, ok := s.data[path][w.docID]; ok {
				doc = &Document{ID: w.docID, Data: cloneFields(fields)}
			}
			fn, d := w.docFn, doc
			pending = append(pending, func() { fn(d) })
		} else {
			fn, docs := w.listFn, s.snapshotLocked(path, w.filters, w.orderBy)
			pending = append(pending, func() { fn(docs) })
		}
	}
	s.mu.Unlock()

	for _, deliver := range pending {
		deliver()
	}
}

func (s *MemoryStore) Get(ctx context.Context, path, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.data[path][id]
	if !ok {
		return nil, ErrNotExists
	}
	return &Document{ID: id, Data: cloneFields(fields)}, nil
}

func (s *MemoryStore) GetAll(ctx context.Context, path string, ids []string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]*Document, len(ids))
	for i, id := range ids {
		if fields, ok := s.data[path][id]; ok {
			docs[i] = &Document{ID: id, Data: cloneFields(fields)}
		}
	}
	return docs, nil
}

func (s *MemoryStore) Query(ctx context.Context, path string, filters []Filter, orderBy string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path, filters, orderBy), nil
}

func (s *MemoryStore) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	if s.data[path] == nil {
		s.data[path] = make(map[string]map[string]any)
	}
	fields := make(map[string]any, len(data))
	for k, v := range data {
		applyField(fields, k, v)
	}
	s.data[path][id] = fields
	s.mu.Unlock()

	s.notify(path)
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, path, id string, data map[string]any, merge bool) error {
	s.mu.Lock()
	if s.data[path] == nil {
		s.data[path] = make(map[string]map[string]any)
	}
	fields := s.data[path][id]
	if fields == nil || !merge {
		fields = make(map[string]any)
	}
	for k, v := range data {
		applyField(fields, k, v)
	}
	s.data[path][id] = fields
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path, id string, data map[string]any) error {
	s.mu.Lock()
	fields, ok := s.data[path][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotExists
	}
	for k, v := range data {
		applyField(fields, k, v)
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path, id string) error {
	s.mu.Lock()
	delete(s.data[path], id)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, path string, filters []Filter, orderBy string, fn func([]*Document)) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = &memWatcher{path: path, filters: filters, orderBy: orderBy, listFn: fn}
	initial := s.snapshotLocked(path, filters, orderBy)
	s.mu.Unlock()

	fn(initial)

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) WatchDoc(ctx context.Context, path, id string, fn func(*Document)) (func(), error) {
	s.mu.Lock()
	wid := s.nextID
	s.nextID++
	s.watchers[wid] = &memWatcher{path: path, docID: id, single: true, docFn: fn}
	var initial *Document
	if fields, ok := s.data[path][id]; ok {
		initial = &Document{ID: id, Data: cloneFields(fields)}
	}
	s.mu.Unlock()

	fn(initial)

	return func() {
		s.mu.Lock()
		delete(s.watchers, wid)
		s.mu.Unlock()
	}, nil
}

// MemoryAuthenticator implements Authenticator with locally minted uids.
type MemoryAuthenticator struct {
	state *stateBroadcaster
}

// NewMemoryAuthenticator creates a new MemoryAuthenticator.
// restoredUID may be empty when no prior session was persisted.
func NewMemoryAuthenticator(restoredUID string) *MemoryAuthenticator {
	return &MemoryAuthenticator{state: newStateBroadcaster(restoredUID)}
}

func (a *MemoryAuthenticator) SignIn(ctx context.Context) (string, error) {
	if uid := a.state.current(); uid != "" {
		a.state.set(uid)
		return uid, nil
	}
	uid := uuid.NewString()
	a.state.set(uid)
	return uid, nil
}

func (a *MemoryAuthenticator) SignOut(ctx context.Context) error {
	a.state.set("")
	return nil
}

func (a *MemoryAuthenticator) OnStateChange(fn func(uid string)) func() {
	return a.state.subscribe(fn)
}
