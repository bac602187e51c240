package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns a snapshot of the user's session; mutations go
// through the setter methods.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSession(userID)
		s.sessions[userID] = sess
	}
	sess.LastActivity = time.Now().UTC()
	return cloneSession(sess), nil
}

// SetRole records the user's role.
func (s *MemoryStore) SetRole(ctx context.Context, userID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensureLocked(userID)
	sess.Role = role
	sess.LastActivity = time.Now().UTC()
	return nil
}

// SetStep moves the user's conversation to the given step.
func (s *MemoryStore) SetStep(ctx context.Context, userID string, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensureLocked(userID)
	sess.Step = step
	sess.LastActivity = time.Now().UTC()
	return nil
}

// SetDraftField stores one draft field, overwriting any prior value.
func (s *MemoryStore) SetDraftField(ctx context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensureLocked(userID)
	if sess.Draft == nil {
		sess.Draft = make(map[string]string)
	}
	sess.Draft[key] = value
	sess.LastActivity = time.Now().UTC()
	return nil
}

// GetDraftField returns the stored value or "" when unset.
func (s *MemoryStore) GetDraftField(ctx context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.Draft == nil {
		return "", nil
	}
	return sess.Draft[key], nil
}

// ClearDraft drops the draft and returns the user to Idle.
func (s *MemoryStore) ClearDraft(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	sess.Draft = make(map[string]string)
	sess.Step = StepIdle
	sess.LastActivity = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ensureLocked(userID string) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSession(userID)
		s.sessions[userID] = sess
	}
	return sess
}

func cloneSession(sess *Session) *Session {
	out := *sess
	out.Draft = make(map[string]string, len(sess.Draft))
	for k, v := range sess.Draft {
		out.Draft[k] = v
	}
	return &out
}
