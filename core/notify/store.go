package notify

import (
	"context"
	"sync"
	"time"
)

// Record is a dismissed notification.
type Record struct {
	ID          string    `json:"id" db:"id"`
	Recipient   string    `json:"recipient" db:"recipient"`
	Message     string    `json:"message" db:"message"`
	Kind        Kind      `json:"kind" db:"kind"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`     // UTC
	DismissedAt time.Time `json:"dismissed_at" db:"dismissed_at"` // UTC
}

// Store persists dismissed notifications.
type Store interface {
	Save(ctx context.Context, rec Record) error
	// List returns the latest records of recipient, newest first. A limit <= 0 returns them all.
	List(ctx context.Context, recipient string, limit int) ([]Record, error)
	Clear(ctx context.Context, recipient string) error
	Count(ctx context.Context, recipient string) (int, error)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]Record // oldest first
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]Record)}
}

func (s *MemStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Recipient] = append(s.records[rec.Recipient], rec)
	return nil
}

func (s *MemStore) List(_ context.Context, recipient string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[recipient]
	if limit <= 0 || limit > len(recs) {
		limit = len(recs)
	}
	res := make([]Record, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, recs[i])
	}
	return res, nil
}

func (s *MemStore) Clear(_ context.Context, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recipient)
	return nil
}

func (s *MemStore) Count(_ context.Context, recipient string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[recipient]), nil
}
