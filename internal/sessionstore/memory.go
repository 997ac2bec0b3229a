package sessionstore

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	fields   map[string]string
	expireAt time.Time
}

// MemoryStore is a single-node Store. Sessions expire after ttl of inactivity
// just like the Redis backend.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !sess.expireAt.IsZero() && !s.now().Before(sess.expireAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}

func (s *MemoryStore) GetField(ctx context.Context, sessionID, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	if sess == nil {
		return "", false, nil
	}
	v, ok := sess.fields[field]
	return v, ok, nil
}

func (s *MemoryStore) SetField(ctx context.Context, sessionID, field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lookup(sessionID)
	if sess == nil {
		sess = &memorySession{fields: make(map[string]string)}
		s.sessions[sessionID] = sess
	}
	sess.fields[field] = value
	if s.ttl > 0 {
		sess.expireAt = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) DeleteField(ctx context.Context, sessionID, field string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.lookup(sessionID); sess != nil {
		delete(sess.fields, field)
		if len(sess.fields) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(sessionID) != nil, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.sessions {
		if s.lookup(id) != nil {
			n++
		}
	}
	return n
}
