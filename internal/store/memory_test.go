package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

func execution(id string) model.TradeExecution {
	return model.TradeExecution{
		ID:         id,
		Symbol:     "NIFTY",
		Expiry:     "25JUL2024",
		Strike:     decimal.NewFromInt(24000),
		OptionType: model.Call,
		Side:       model.Buy,
		Quantity:   10,
		Price:      decimal.NewFromInt(5),
		TradeDate:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_AppendAssignsSeqInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a"), execution("b")}); err != nil {
		t.Fatalf("append b1: %v", err)
	}
	if err := s.AppendBatch(ctx, &model.Batch{ID: "b2"}, []model.TradeExecution{execution("c")}); err != nil {
		t.Fatalf("append b2: %v", err)
	}

	log, _ := s.ListExecutions(ctx)
	if len(log) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(log))
	}
	for i, e := range log {
		if e.Seq != int64(i+1) {
			t.Errorf("execution %s: expected seq %d, got %d", e.ID, i+1, e.Seq)
		}
	}
	if log[2].BatchID != "b2" {
		t.Errorf("expected batch b2, got %s", log[2].BatchID)
	}

	batches, _ := s.ListBatches(ctx)
	if len(batches) != 2 {
		t.Errorf("expected 2 batches, got %d", len(batches))
	}
}

func TestMemoryStore_RejectsEmptyAndDuplicateBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.AppendBatch(ctx, &model.Batch{ID: "b1"}, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
	s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a")})
	if err := s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("b")}); err == nil {
		t.Error("expected duplicate batch error")
	}

	log, _ := s.ListExecutions(ctx)
	if len(log) != 1 {
		t.Errorf("failed append must not leave rows, got %d", len(log))
	}
}

func TestMemoryStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.AppendBatch(ctx, &model.Batch{ID: "b1"}, []model.TradeExecution{execution("a")})

	snap, _ := s.ListExecutions(ctx)
	s.AppendBatch(ctx, &model.Batch{ID: "b2"}, []model.TradeExecution{execution("b")})

	if len(snap) != 1 {
		t.Errorf("snapshot changed after append: %d", len(snap))
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			s.AppendBatch(ctx, &model.Batch{ID: id}, []model.TradeExecution{execution(id + "1"), execution(id + "2")})
		}(i)
	}
	wg.Wait()

	log, _ := s.ListExecutions(ctx)
	if len(log) != 40 {
		t.Fatalf("expected 40 executions, got %d", len(log))
	}
	seen := make(map[int64]bool)
	for _, e := range log {
		if seen[e.Seq] {
			t.Fatalf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
	}
}
