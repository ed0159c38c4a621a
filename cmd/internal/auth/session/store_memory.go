package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store for development and tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[rec.Hash]; ok {
		return ErrConflict
	}
	s.recs[rec.Hash] = rec
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, hash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	delete(s.recs, hash)
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.recs, hash)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, rec := range s.recs {
		if rec.OwnerID == ownerID {
			delete(s.recs, h)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, rec := range s.recs {
		if rec.Expired(now) {
			delete(s.recs, h)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}
