package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/optpnl/pnl-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	batches []model.Batch
	log     []model.TradeExecution
	nextSeq int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextSeq: 1}
}

func (s *MemoryStore) AppendBatch(_ context.Context, batch *model.Batch, executions []model.TradeExecution) error {
	if len(executions) == 0 {
		return ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.batches {
		if b.ID == batch.ID {
			return fmt.Errorf("batch %s already exists", batch.ID)
		}
	}

	s.batches = append(s.batches, *batch)
	for i := range executions {
		executions[i].BatchID = batch.ID
		executions[i].Seq = s.nextSeq
		s.nextSeq++
		s.log = append(s.log, executions[i])
	}
	return nil
}

func (s *MemoryStore) ListExecutions(_ context.Context) ([]model.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Copy so callers never see a later append.
	out := make([]model.TradeExecution, len(s.log))
	copy(out, s.log)
	return out, nil
}

func (s *MemoryStore) ListBatches(_ context.Context) ([]model.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Batch, len(s.batches))
	copy(out, s.batches)
	return out, nil
}
