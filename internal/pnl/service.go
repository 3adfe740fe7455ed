// Package pnl provides the HTTP handlers and orchestration for uploading
// trade files and reading the position/P&L report.
//
// All monetary values use shopspring/decimal, never float64.
package pnl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/ingest"
	"github.com/optpnl/pnl-engine/internal/metrics"
	"github.com/optpnl/pnl-engine/internal/model"
	"github.com/optpnl/pnl-engine/internal/report"
	"github.com/optpnl/pnl-engine/internal/store"
)

// Service serializes writes to the execution log. An upload holds the write
// lock across read-history → append → rebuild, so no report ever observes a
// half-applied batch; reports share the read lock with each other. For
// multiple instances, PostgresStore additionally takes an advisory lock.
type Service struct {
	store          store.Store
	mu             sync.RWMutex
	wsHub          *WSHub // optional WebSocket hub for upload notifications
	maxUploadBytes int64
}

// NewService creates a new P&L service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub, maxUploadBytes int64) *Service {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Service{
		store:          st,
		wsHub:          hub,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResult is returned after a batch has been applied.
type UploadResult struct {
	Batch      model.Batch       `json:"batch"`
	Rejected   []model.Rejection `json:"rejected"`
	GrandTotal *decimal.Decimal  `json:"grand_total"`
	Open       int               `json:"open_contracts"`
	Closed     int               `json:"closed_contracts"`
	Warning    string            `json:"warning,omitempty"` // set when the batch is stored but the summary is unavailable
}

// Apply appends a normalized batch to the log and rebuilds the report from
// the full history. A batch with no accepted executions is not persisted.
func (s *Service) Apply(ctx context.Context, res *ingest.Result) (*UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := model.Batch{
		ID:         uuid.New().String(),
		Source:     res.Source,
		UploadedAt: time.Now().UTC(),
		Accepted:   len(res.Executions),
		Rejected:   len(res.Rejected),
	}
	metrics.ExecutionsTotal.WithLabelValues("rejected").Add(float64(len(res.Rejected)))

	if len(res.Executions) > 0 {
		executions := make([]model.TradeExecution, len(res.Executions))
		copy(executions, res.Executions)
		for i := range executions {
			executions[i].ID = uuid.New().String()
			executions[i].BatchID = batch.ID
			executions[i].TradeDate = model.TruncateDate(executions[i].TradeDate)
		}
		if err := s.store.AppendBatch(ctx, &batch, executions); err != nil {
			return nil, fmt.Errorf("append batch %s: %w", batch.ID, err)
		}
		metrics.ExecutionsTotal.WithLabelValues("accepted").Add(float64(len(executions)))
	}

	out := &UploadResult{
		Batch:    batch,
		Rejected: res.Rejected,
	}
	if out.Rejected == nil {
		out.Rejected = []model.Rejection{}
	}

	// Once stored, a batch must not be reported as failed: a retry would
	// append it again.
	rep, err := s.rebuild(ctx)
	if err != nil && batch.Accepted == 0 {
		return nil, err
	}
	if err != nil {
		slog.Error("report rebuild after append failed", "batch_id", batch.ID, "err", err)
		out.Warning = "batch recorded; report summary unavailable: " + err.Error()
		return out, nil
	}

	if rep.GrandTotal != nil {
		total := rep.GrandTotal.RealizedPnL
		out.GrandTotal = &total
	}
	out.Open, out.Closed = rep.Counts()

	slog.Info("batch applied",
		"batch_id", batch.ID,
		"source", batch.Source,
		"accepted", batch.Accepted,
		"rejected", batch.Rejected,
		"open", out.Open,
		"closed", out.Closed,
	)

	if s.wsHub != nil && batch.Accepted > 0 {
		msg := WSMessage{
			Type:     "report_updated",
			BatchID:  batch.ID,
			Source:   batch.Source,
			Accepted: batch.Accepted,
			Rejected: batch.Rejected,
			Open:     out.Open,
			Closed:   out.Closed,
		}
		if out.GrandTotal != nil {
			msg.GrandTotal = out.GrandTotal.String()
		}
		s.wsHub.Broadcast(msg)
	}
	return out, nil
}

// Report rebuilds the report from a consistent snapshot of the log.
func (s *Service) Report(ctx context.Context) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rebuild(ctx)
}

// Executions returns the full log.
func (s *Service) Executions(ctx context.Context) ([]model.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListExecutions(ctx)
}

// Batches returns every applied batch.
func (s *Service) Batches(ctx context.Context) ([]model.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListBatches(ctx)
}

var errNoPosition = errors.New("pnl: no position for contract")

// Position returns the lifetime ledger state of one leg.
func (s *Service) Position(ctx context.Context, key model.ContractKey) (model.LedgerState, error) {
	rep, err := s.Report(ctx)
	if err != nil {
		return model.LedgerState{}, err
	}
	for _, p := range rep.Positions {
		if p.Key == key {
			return p, nil
		}
	}
	return model.LedgerState{}, fmt.Errorf("%w: %s", errNoPosition, key)
}

// rebuild must be called with s.mu held.
func (s *Service) rebuild(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	history, err := s.store.ListExecutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load execution log: %w", err)
	}
	rep := report.Build(history)
	if len(rep.Rejected) > 0 {
		// The log should only ever hold validated executions.
		slog.Warn("invalid executions in log", "count", len(rep.Rejected))
	}

	open, closed := rep.Counts()
	metrics.ObserveReport(start, len(history), open, closed)
	return rep, nil
}
