package session

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/service"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session ID")
)

// Manager handles session lifecycle. Engine events mark sessions dirty so
// SaveDirty only writes cities that changed. Commands and tick progress are
// tracked apart: only unsaved commands keep a session from being pruned.
type Manager struct {
	sessions     map[string]*service.Session
	unsubscribes map[string]func()
	dirty        map[string]bool
	progressed   map[string]bool
	persistence  SessionPersistence
	mu           sync.RWMutex

	listenersMu  sync.Mutex
	listeners    map[int]service.SessionListener
	listenerSeq  []int
	nextListener int
}

// NewManager creates a new in-memory session manager
func NewManager() *Manager {
	return NewManagerWithPersistence(nil)
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	return &Manager{
		sessions:     make(map[string]*service.Session),
		unsubscribes: make(map[string]func()),
		dirty:        make(map[string]bool),
		progressed:   make(map[string]bool),
		persistence:  persistence,
		listeners:    make(map[int]service.SessionListener),
	}
}

// Create starts a new city for config under a fresh UUID
func (m *Manager) Create(configName string, config *engine.Config) (*service.Session, error) {
	eng, err := engine.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	session := service.NewSession(uuid.NewString(), configName, eng, config)

	m.mu.Lock()
	m.attach(session)
	m.mu.Unlock()

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			log.Printf("Warning: Failed to persist session %s: %v", session.ID, err)
			m.MarkDirty(session.ID)
		}
	}

	return session, nil
}

// Get retrieves a session by ID, loading it from persistence when it is not
// in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	if !validID(id) {
		return nil, ErrSessionNotFound
	}
	key := strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[key]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	if m.persistence == nil || !m.persistence.Exists(key) {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, exists := m.sessions[key]; exists {
		return session, nil
	}
	m.attach(loaded)
	return loaded, nil
}

// List returns all in-memory sessions, oldest first
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	m.mu.RUnlock()

	sortByCreation(result)
	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	key := strings.ToLower(id)

	m.mu.Lock()
	_, inMemory := m.sessions[key]
	m.detach(key)
	m.mu.Unlock()

	if m.persistence != nil && m.persistence.Exists(key) {
		if err := m.persistence.Delete(key); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateLastAccessed records an access on the session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	session.Touch(time.Now())
	return nil
}

// MarkDirty flags a session for the next SaveDirty
func (m *Manager) MarkDirty(id string) {
	key := strings.ToLower(id)
	m.mu.Lock()
	if _, exists := m.sessions[key]; exists {
		m.dirty[key] = true
	}
	m.mu.Unlock()
}

// IsDirty reports whether the session has unsaved changes
func (m *Manager) IsDirty(id string) bool {
	key := strings.ToLower(id)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty[key] || m.progressed[key]
}

// markProgressed records unsaved tick progress for key.
func (m *Manager) markProgressed(key string) {
	m.mu.Lock()
	if _, exists := m.sessions[key]; exists {
		m.progressed[key] = true
	}
	m.mu.Unlock()
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	key := strings.ToLower(id)
	m.mu.Lock()
	session, exists := m.sessions[key]
	if exists {
		delete(m.dirty, key)
		delete(m.progressed, key)
	}
	m.mu.Unlock()
	if !exists {
		return ErrSessionNotFound
	}

	if err := m.persistence.Save(session); err != nil {
		m.MarkDirty(key)
		return err
	}
	return nil
}

// SaveDirty persists every session changed since its last save and returns
// how many were written
func (m *Manager) SaveDirty() (int, error) {
	if m.persistence == nil {
		return 0, nil
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.dirty)+len(m.progressed))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	for id := range m.progressed {
		if !m.dirty[id] {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	saved, failed := 0, 0
	for _, id := range ids {
		if err := m.Save(id); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			log.Printf("Warning: Failed to save session %s: %v", id, err)
			failed++
			continue
		}
		saved++
	}

	if failed > 0 {
		return saved, fmt.Errorf("failed to save %d sessions", failed)
	}
	return saved, nil
}

// Subscribe registers fn for engine events of every session, current and
// future. The returned function removes it.
func (m *Manager) Subscribe(fn service.SessionListener) func() {
	m.listenersMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.listenerSeq = append(m.listenerSeq, id)
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
		for i, v := range m.listenerSeq {
			if v == id {
				m.listenerSeq = append(m.listenerSeq[:i], m.listenerSeq[i+1:]...)
				break
			}
		}
	}
}

// CleanupExpiredSessions evicts sessions not accessed within maxAge. Dirty
// sessions are saved first so eviction never loses changes.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.RLock()
	var expired []string
	for key, session := range m.sessions {
		if session.LastAccessed().Before(cutoff) {
			expired = append(expired, key)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, key := range expired {
		if m.persistence != nil && m.IsDirty(key) {
			if err := m.Save(key); err != nil {
				log.Printf("Warning: keeping expired session %s, save failed: %v", key, err)
				continue
			}
		}

		m.mu.Lock()
		if _, exists := m.sessions[key]; exists {
			m.detach(key)
			removed++
		}
		m.mu.Unlock()
	}

	return removed
}

// PruneOrphaned drops in-memory sessions whose persisted record has been
// deleted out from under the server. Sessions with unsaved commands are
// kept and the next save recreates their record. Unsaved tick progress does
// not protect a session, so running cities are pruned too; call this before
// SaveDirty or the save rewrites the record first.
func (m *Manager) PruneOrphaned() int {
	if m.persistence == nil {
		return 0
	}

	m.mu.RLock()
	var candidates []string
	for key := range m.sessions {
		if !m.dirty[key] {
			candidates = append(candidates, key)
		}
	}
	m.mu.RUnlock()

	pruned := 0
	for _, key := range candidates {
		if m.persistence.Exists(key) {
			continue
		}

		m.mu.Lock()
		if _, exists := m.sessions[key]; exists && !m.dirty[key] {
			m.detach(key)
			pruned++
			log.Printf("[SESSION] Pruned %s from memory (record deleted)", key)
		}
		m.mu.Unlock()
	}

	return pruned
}

// Count returns the number of sessions in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory. Sessions
// that fail to load are logged and skipped.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loadedCount := 0
	for _, id := range sessionIDs {
		key := strings.ToLower(id)

		m.mu.RLock()
		_, exists := m.sessions[key]
		m.mu.RUnlock()
		if exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}

		m.mu.Lock()
		m.attach(session)
		m.mu.Unlock()
		loadedCount++
	}

	if loadedCount > 0 {
		log.Printf("Loaded %d persisted sessions from storage", loadedCount)
	}
	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	errorCount := 0
	for _, session := range m.List() {
		if err := m.Save(session.ID); err != nil {
			log.Printf("Warning: Failed to save session %s: %v", session.ID, err)
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}

// attach registers session and hooks its engine events. Caller holds m.mu.
func (m *Manager) attach(session *service.Session) {
	key := strings.ToLower(session.ID)
	id := session.ID
	m.sessions[key] = session
	m.unsubscribes[key] = session.Engine.Subscribe(func(ev engine.Event) {
		if ev.Type == engine.EventTick {
			m.markProgressed(key)
		} else {
			m.MarkDirty(key)
		}
		m.dispatch(id, ev)
	})
}

// detach forgets the session. Caller holds m.mu.
func (m *Manager) detach(key string) {
	if unsubscribe, ok := m.unsubscribes[key]; ok {
		unsubscribe()
	}
	delete(m.unsubscribes, key)
	delete(m.sessions, key)
	delete(m.dirty, key)
	delete(m.progressed, key)
}

func (m *Manager) dispatch(sessionID string, ev engine.Event) {
	m.listenersMu.Lock()
	fns := make([]service.SessionListener, 0, len(m.listenerSeq))
	for _, id := range m.listenerSeq {
		fns = append(fns, m.listeners[id])
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(sessionID, ev)
	}
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func sortByCreation(sessions []*service.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
