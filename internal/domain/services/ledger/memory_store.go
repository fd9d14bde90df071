package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tipstream/tip_service/internal/domain/entities"
)

// MemoryStore keeps records in process memory. Used by tests and the memory backend.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entities.TipTransaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*entities.TipTransaction)}
}

func (s *MemoryStore) Save(ctx context.Context, tx *entities.TipTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tx.ID] = tx.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]*entities.TipTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*entities.TipTransaction, 0, len(s.records))
	for _, tx := range s.records {
		result = append(result, tx.Clone())
	}
	return result, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID]*entities.TipTransaction)
	return nil
}

// Len reports how many records are stored
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
