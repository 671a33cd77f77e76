package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/rollkit/pkg/domain"
)

// Store implements ports.RollStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.RollRecord
	// seq breaks CreatedAt ties in save order.
	seq  map[string]uint64
	next uint64
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.RollRecord),
		seq:  make(map[string]uint64),
	}
}

// Save persists a copy of the record in memory.
func (s *Store) Save(ctx context.Context, record *domain.RollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[record.ID]; !ok {
		s.next++
		s.seq[record.ID] = s.next
	}
	s.data[record.ID] = record.Clone()
	return nil
}

// Load retrieves a copy of the record so callers can't mutate store state by pointer.
func (s *Store) Load(ctx context.Context, id string) (*domain.RollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[id]
	if !ok {
		return nil, domain.ErrRollNotFound
	}
	return record.Clone(), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	delete(s.seq, id)
	return nil
}

// List returns the records of a channel, oldest first.
func (s *Store) List(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.RollRecord, 0)
	for _, r := range s.data {
		if r.Channel == channel {
			records = append(records, r.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})
	return records, nil
}
