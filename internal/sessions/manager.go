package sessions

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultStateTTL is how long an idle conversation state is kept.
const DefaultStateTTL = 30 * time.Minute

// Manager owns the per-user conversation states: lookup, expiry and
// optional JSON file persistence (one file per user).
type Manager struct {
	states  map[string]*ConversationState
	mu      sync.RWMutex
	storage string
	ttl     time.Duration
	now     func() time.Time
}

func NewManager(storage string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	m := &Manager{
		states:  make(map[string]*ConversationState),
		storage: storage,
		ttl:     ttl,
		now:     time.Now,
	}
	if storage != "" {
		os.MkdirAll(storage, 0755)
		m.loadAll()
	}
	return m
}

// Get returns a copy of the user's state. Expired states are dropped.
func (m *Manager) Get(userID string) (ConversationState, bool) {
	m.mu.RLock()
	s, ok := m.states[userID]
	if ok && !m.expired(s) {
		c := s.clone()
		m.mu.RUnlock()
		return c, true
	}
	m.mu.RUnlock()

	if ok {
		m.dropIfExpired(userID)
	}
	return ConversationState{UserID: userID, Awaiting: AwaitingNone}, false
}

// Update applies fn to the user's state, creating it lazily, and persists it.
func (m *Manager) Update(userID string, fn func(s *ConversationState)) ConversationState {
	m.mu.Lock()
	s, ok := m.states[userID]
	if !ok || m.expired(s) {
		s = &ConversationState{UserID: userID, Awaiting: AwaitingNone}
		m.states[userID] = s
	}
	fn(s)
	if s.Awaiting == "" {
		s.Awaiting = AwaitingNone
	}
	s.Updated = m.now()
	c := s.clone()
	m.mu.Unlock()

	if err := m.Save(userID); err != nil {
		slog.Warn("sessions: save failed", "user", userID, "error", err)
	}
	return c
}

// Clear removes the user's state.
func (m *Manager) Clear(userID string) error {
	m.mu.Lock()
	delete(m.states, userID)
	m.mu.Unlock()
	return m.removeFile(userID)
}

func (m *Manager) removeFile(userID string) error {
	if m.storage == "" {
		return nil
	}
	filename, ok := stateFilename(userID)
	if !ok {
		return os.ErrInvalid
	}
	if err := os.Remove(filepath.Join(m.storage, filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep removes every expired state and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.RLock()
	var expired []string
	for id, s := range m.states {
		if m.expired(s) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range expired {
		if m.dropIfExpired(id) {
			n++
		}
	}
	return n
}

// dropIfExpired re-checks expiry under the write lock so a concurrent
// Update is never discarded.
func (m *Manager) dropIfExpired(userID string) bool {
	m.mu.Lock()
	s, ok := m.states[userID]
	if !ok || !m.expired(s) {
		m.mu.Unlock()
		return false
	}
	delete(m.states, userID)
	m.mu.Unlock()
	if err := m.removeFile(userID); err != nil {
		slog.Warn("sessions: drop expired state failed", "user", userID, "error", err)
	}
	return true
}

// Count returns the number of held states, expired or not.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// SetTTL changes the idle expiry (hot reload).
func (m *Manager) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.ttl = ttl
	m.mu.Unlock()
}

func (m *Manager) expired(s *ConversationState) bool {
	return m.now().Sub(s.Updated) > m.ttl
}

// Save persists one user's state to disk.
func (m *Manager) Save(userID string) error {
	if m.storage == "" {
		return nil
	}

	m.mu.RLock()
	s, ok := m.states[userID]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	snapshot := s.clone()
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	filename, ok := stateFilename(userID)
	if !ok {
		return os.ErrInvalid
	}
	statePath := filepath.Join(m.storage, filename)

	// Atomic write: temp file → rename
	tmpFile, err := os.CreateTemp(m.storage, "state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, statePath); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func (m *Manager) loadAll() {
	files, err := os.ReadDir(m.storage)
	if err != nil {
		return
	}

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.storage, f.Name()))
		if err != nil {
			continue
		}

		var s ConversationState
		if err := json.Unmarshal(data, &s); err != nil || s.UserID == "" {
			continue
		}
		m.states[s.UserID] = &s
	}
}

func stateFilename(userID string) (string, bool) {
	name := strings.ReplaceAll(userID, ":", "_")
	if name == "" || name == "." || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name + ".json", true
}
