package annotate

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tagline/internal/errors"
)

// Manager tracks open sessions for long-lived front ends. At most one
// session per sentence is open at a time.
type Manager struct {
	gw   Gateway
	opts []Option

	mu       sync.Mutex
	sessions map[string]*Session
	bySent   map[int64]string
}

// NewManager creates a manager whose sessions use gw.
func NewManager(gw Gateway, opts ...Option) *Manager {
	return &Manager{
		gw:       gw,
		opts:     opts,
		sessions: make(map[string]*Session),
		bySent:   make(map[int64]string),
	}
}

// Open creates and loads a session for sentence id, returning its ULID.
// A failed load releases the sentence so it can be opened again.
func (m *Manager) Open(ctx context.Context, id int64) (string, *Session, error) {
	m.mu.Lock()
	if existing, ok := m.bySent[id]; ok {
		m.mu.Unlock()
		return "", nil, errors.NewSessionExists(id, existing)
	}
	sessionID := ulid.Make().String()
	s := NewSession(m.gw, id, m.opts...)
	m.sessions[sessionID] = s
	m.bySent[id] = sessionID
	m.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		m.remove(sessionID)
		s.Close()
		return "", nil, err
	}
	return sessionID, s, nil
}

// Get returns the open session with the given ULID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(sessionID string) error {
	s := m.remove(sessionID)
	if s == nil {
		return errors.NewSessionNotFound(sessionID)
	}
	s.Close()
	return nil
}

// CloseAll closes every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.bySent = make(map[int64]string)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// IDs returns the ULIDs of open sessions in creation order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) remove(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(m.sessions, sessionID)
	if m.bySent[s.id] == sessionID {
		delete(m.bySent, s.id)
	}
	return s
}
