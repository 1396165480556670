// Package localstore is the best-effort local persistence collaborator:
// a JSON state file holding the session blob, the last active chat and
// per-chat scroll positions. It is a convenience cache and never
// authoritative over the backend.
package localstore

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/anonto42/chatbro/backend/internal/models"
)

const stateFile = "state.json"

type state struct {
	Session    *models.User   `json:"session,omitempty"`
	LastChatID string         `json:"lastChatId,omitempty"`
	ScrollPos  map[string]int `json:"scrollPos,omitempty"`
}

// Store persists small client state under a directory. All operations
// are best-effort: failures are logged, never surfaced.
type Store struct {
	mu   sync.Mutex
	path string
	st   state
}

// New loads (or initializes) the state file under dir.
func New(dir string) *Store {
	s := &Store{path: filepath.Join(dir, stateFile)}
	s.st.ScrollPos = make(map[string]int)

	if raw, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(raw, &s.st); err != nil {
			log.Printf("Error reading local state, starting fresh: %v\n", err)
			s.st = state{ScrollPos: make(map[string]int)}
		}
	}
	if s.st.ScrollPos == nil {
		s.st.ScrollPos = make(map[string]int)
	}
	return s
}

func (s *Store) flushLocked() {
	raw, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		log.Printf("Error encoding local state: %v\n", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("Error creating state dir: %v\n", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		log.Printf("Error saving local state: %v\n", err)
	}
}

// SaveSession caches the signed-in user. The user is copied so later
// mutations by the caller cannot reach into the cache.
func (s *Store) SaveSession(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.st.Session = nil
	} else {
		cp := *u
		s.st.Session = &cp
	}
	s.flushLocked()
}

// Session returns a copy of the cached user, or nil.
func (s *Store) Session() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Session == nil {
		return nil
	}
	cp := *s.st.Session
	return &cp
}

// ClearSession drops all cached state on logout.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state{ScrollPos: make(map[string]int)}
	s.flushLocked()
}

// SetLastChat remembers the most recently opened chat id.
func (s *Store) SetLastChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LastChatID = chatID
	s.flushLocked()
}

// LastChat returns the most recently opened chat id, or "".
func (s *Store) LastChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LastChatID
}

// SetScrollPos remembers a chat's scroll position.
func (s *Store) SetScrollPos(chatID string, pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.ScrollPos[chatID] = pos
	s.flushLocked()
}

// ScrollPos returns a chat's remembered scroll position, or 0.
func (s *Store) ScrollPos(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ScrollPos[chatID]
}
