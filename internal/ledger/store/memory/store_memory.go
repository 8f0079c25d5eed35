package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"licita/internal/ledger/models"
	"licita/pkg/platform/sentinel"
)

// InMemoryStore keeps transactions in process memory. Records are copied on
// the way in and out, so callers can never mutate stored state.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*models.Transaction
	byHash map[string]*models.Transaction
	order  []*models.Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]*models.Transaction),
		byHash: make(map[string]*models.Transaction),
	}
}

// Clear drops every record. Intended for tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*models.Transaction)
	s.byHash = make(map[string]*models.Transaction)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[tx.ID]; ok {
		return fmt.Errorf("transaction id %s: %w", tx.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byHash[tx.Hash]; ok {
		return fmt.Errorf("transaction hash %s: %w", tx.Hash, sentinel.ErrConflict)
	}
	stored := clone(tx)
	s.byID[stored.ID] = stored
	s.byHash[stored.Hash] = stored
	s.order = append(s.order, stored)
	return nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, hash string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byHash[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(tx), nil
}

func (s *InMemoryStore) FindByHashes(_ context.Context, hashes []string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if tx, ok := s.byHash[h]; ok {
			out = append(out, clone(tx))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.order {
		if tx.References(entityID) {
			out = append(out, clone(tx))
		}
	}
	slices.SortFunc(out, compare)
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.order)), nil
}

// ForEach visits records in insertion order over a snapshot taken at call
// time, so fn may call back into the store.
func (s *InMemoryStore) ForEach(ctx context.Context, fn func(*models.Transaction) error) error {
	s.mu.RLock()
	snapshot := make([]*models.Transaction, len(s.order))
	for i, tx := range s.order {
		snapshot[i] = clone(tx)
	}
	s.mu.RUnlock()

	for _, tx := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

func compare(a, b *models.Transaction) int {
	switch {
	case models.Less(a, b):
		return -1
	case models.Less(b, a):
		return 1
	default:
		return 0
	}
}

func clone(tx *models.Transaction) *models.Transaction {
	c := *tx
	c.Payload = bytes.Clone(tx.Payload)
	return &c
}
