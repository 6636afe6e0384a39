package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store holds all live sessions in memory. Sessions are never evicted for
// the lifetime of the process; restart clears everything.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// New creates a session with a fresh identifier and registers it.
func (st *Store) New() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := uuid.NewString()
	s := newSession(id)
	st.sessions[id] = s
	return s
}

// Get returns the session with the given ID.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// GetOrCreate returns the session with the given ID, creating and
// registering a fresh one when the ID is empty or unknown.
func (st *Store) GetOrCreate(id string) *Session {
	if id != "" {
		st.mu.RLock()
		s, ok := st.sessions[id]
		st.mu.RUnlock()
		if ok {
			return s
		}
	}
	return st.New()
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
