package services

import (
	"sync"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

// SessionStore is the process-wide registry of live interview sessions.
// Every read-modify-write of a session goes through Mutate, which holds that
// session's lock for the duration of the transition. Sessions are
// independent, so no lock spans more than one of them.
type SessionStore interface {
	Create(sessionID string, role models.Role, bankID string) (models.InterviewSession, error)
	Get(sessionID string) (models.InterviewSession, error)
	Remove(sessionID string)
	Mutate(sessionID string, fn func(s *models.InterviewSession) error) error
	// Touch records connection liveness without changing session state.
	Touch(sessionID string) error
	IdleSince(cutoff time.Time) []string
	Count() int
}

type sessionEntry struct {
	mu      sync.Mutex
	sess    *models.InterviewSession
	removed bool
}

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewSessionStore() SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

func NewSessionStoreWithClock(now func() time.Time) SessionStore {
	if now == nil {
		now = time.Now
	}
	return &sessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      now,
	}
}

func (s *sessionStore) Create(sessionID string, role models.Role, bankID string) (models.InterviewSession, error) {
	const op = "SessionStore.Create"

	if sessionID == "" {
		return models.InterviewSession{}, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	now := s.now().UTC()
	sess := &models.InterviewSession{
		SessionID:    sessionID,
		Role:         role,
		BankID:       bankID,
		State:        models.StateJoining,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; exists {
		return models.InterviewSession{}, utils.E(utils.CodeConflict, op, "session already exists", utils.ErrDuplicateSession)
	}
	s.sessions[sessionID] = &sessionEntry{sess: sess}
	return sess.Clone(), nil
}

// Get returns a snapshot; mutating it has no effect on the stored session.
func (s *sessionStore) Get(sessionID string) (models.InterviewSession, error) {
	const op = "SessionStore.Get"

	e := s.lookup(sessionID)
	if e == nil {
		return models.InterviewSession{}, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return models.InterviewSession{}, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	return e.sess.Clone(), nil
}

// Remove is idempotent.
func (s *sessionStore) Remove(sessionID string) {
	s.mu.Lock()
	e := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if e == nil {
		return
	}
	// A Mutate that looked the entry up before the delete sees removed once
	// it gets the lock.
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
}

// Mutate applies fn under the session's lock. If fn returns an error the
// session is left exactly as fn left it; transitions must validate before
// writing.
func (s *sessionStore) Mutate(sessionID string, fn func(sess *models.InterviewSession) error) error {
	const op = "SessionStore.Mutate"

	e := s.lookup(sessionID)
	if e == nil {
		return utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	if err := fn(e.sess); err != nil {
		return err
	}
	e.sess.LastActiveAt = s.now().UTC()
	return nil
}

func (s *sessionStore) Touch(sessionID string) error {
	return s.Mutate(sessionID, func(*models.InterviewSession) error { return nil })
}

// IdleSince lists sessions whose last successful mutation or touch is
// before cutoff.
func (s *sessionStore) IdleSince(cutoff time.Time) []string {
	s.mu.RLock()
	entries := make(map[string]*sessionEntry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	var out []string
	for id, e := range entries {
		e.mu.Lock()
		if !e.removed && e.sess.LastActiveAt.Before(cutoff) {
			out = append(out, id)
		}
		e.mu.Unlock()
	}
	return out
}

func (s *sessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionStore) lookup(sessionID string) *sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}
