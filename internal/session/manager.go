package session

import (
	"sync"
	"time"

	apperrors "assetcomposer/internal/errors"
	"assetcomposer/internal/uuid"
)

// Manager keeps the open sessions of every owner. Sessions are not shared
// between owners and are never persisted.
type Manager struct {
	persister Persister
	opts      []Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager whose sessions use persister.
func NewManager(persister Persister, opts ...Option) *Manager {
	return &Manager{
		persister: persister,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Create registers a new idle session for ownerID.
func (m *Manager) Create(ownerID string) *Session {
	s := New(uuid.New(), ownerID, m.persister, m.opts...)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns the owner's session with the given id. Sessions of other
// owners are reported as not found.
func (m *Manager) Get(ownerID, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.OwnerID() != ownerID {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

// Close discards a session and its unsaved edits.
func (m *Manager) Close(ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.OwnerID() != ownerID {
		return apperrors.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune closes sessions that have not changed since before cutoff and
// returns how many were closed. Sessions in the middle of a save or import
// are kept.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, s := range m.sessions {
		switch s.State() {
		case StateSaving, StateImporting, StateLoading:
			continue
		}
		if s.IdleSince().Before(cutoff) {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}
