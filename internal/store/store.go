// Package store defines the persistence interface for the execution log.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/optpnl/pnl-engine/internal/model"
)

var ErrEmptyBatch = errors.New("store: batch has no executions")

// Store is the persistence interface. The execution log is append-only;
// every report is recomputed from a full read of it.
type Store interface {
	// AppendBatch records a batch and its executions atomically: either all
	// of them become visible to readers or none do. Seq is assigned here.
	AppendBatch(ctx context.Context, batch *model.Batch, executions []model.TradeExecution) error

	// ListExecutions returns the full log in ingest order.
	ListExecutions(ctx context.Context) ([]model.TradeExecution, error)

	// ListBatches returns every batch, oldest first.
	ListBatches(ctx context.Context) ([]model.Batch, error)
}
