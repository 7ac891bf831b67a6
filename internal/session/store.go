package session

import (
	"context"
	"sync"
	"time"
)

// Persisted keys of a session record.
const (
	KeyUser             = "itqan_user"
	KeyProfileCompleted = "itqan_profile_completed"
	KeyTokens           = "itqan_tokens"
)

// ProfileCompletedFlag is the value stored under KeyProfileCompleted once the
// profile has been completed. The key is absent otherwise.
const ProfileCompletedFlag = "1"

// Store is a per-session key/value store. GetItem reports a missing key with
// ok=false and a nil error.
type Store interface {
	GetItem(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, sessionID, key, value string) error
	RemoveItem(ctx context.Context, sessionID, key string) error
	Clear(ctx context.Context, sessionID string) error
}

// Expirer is implemented by stores that can purge idle sessions.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type memoryRecord struct {
	items     map[string]string
	expiresAt time.Time
}

// MemoryStore keeps session records in process memory. Every write extends
// the record's lifetime by ttl.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) GetItem(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok || !s.now().Before(rec.expiresAt) {
		return "", false, nil
	}
	value, ok := rec.items[key]
	return value, ok, nil
}

func (s *MemoryStore) SetItem(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[sessionID]
	if !ok || !now.Before(rec.expiresAt) {
		rec = &memoryRecord{items: make(map[string]string)}
		s.records[sessionID] = rec
	}
	rec.items[key] = value
	rec.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[sessionID]; ok {
		delete(rec.items, key)
		if len(rec.items) == 0 {
			delete(s.records, sessionID)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	return nil
}

// DeleteExpired drops every record whose lifetime has passed.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, rec := range s.records {
		if !now.Before(rec.expiresAt) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}
