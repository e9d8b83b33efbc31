package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
)

// Manager holds the live sessions of this host process, keyed by room id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Add registers a session. The last registration for a room id wins.
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.RoomID()] = s
}

// Get returns the session for a room.
func (m *Manager) Get(roomID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[roomID]
	return s, ok
}

// Remove drops a finished room.
func (m *Manager) Remove(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, roomID)
}

// RoomIDs lists the rooms this host currently owns.
func (m *Manager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the current state patch for a room.
func (m *Manager) Snapshot(roomID string) (match.Patch, bool) {
	s, ok := m.Get(roomID)
	if !ok {
		return match.Patch{}, false
	}
	return s.Snapshot(), true
}

// ApplyIntent routes an incoming intent to its room's session.
func (m *Manager) ApplyIntent(ctx context.Context, intent wire.Intent) error {
	s, ok := m.Get(intent.RoomID)
	if !ok {
		return fmt.Errorf("no session for room %s", intent.RoomID)
	}
	return s.ApplyIntent(ctx, intent)
}
