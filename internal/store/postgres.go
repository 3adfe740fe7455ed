package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/contract"
	"github.com/optpnl/pnl-engine/internal/model"
)

// appendLockKey is the advisory lock serializing writers across instances.
const appendLockKey int64 = 0x706e6c6c6f67 // "pnllog"

// Schema creates the execution log tables. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS batches (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	accepted    INTEGER NOT NULL,
	rejected    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	batch_id    TEXT NOT NULL REFERENCES batches(id),
	symbol      TEXT NOT NULL,
	expiry      TEXT NOT NULL,
	strike      NUMERIC NOT NULL,
	option_type TEXT NOT NULL,
	side        TEXT NOT NULL,
	quantity    BIGINT NOT NULL CHECK (quantity > 0),
	price       NUMERIC NOT NULL CHECK (price > 0),
	trade_date  DATE NOT NULL
);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AppendBatch writes the batch in one transaction holding a transaction-scoped
// advisory lock, so concurrent uploads from any instance are serialized and a
// failed batch leaves no partial rows behind.
func (s *PostgresStore) AppendBatch(ctx context.Context, b *model.Batch, executions []model.TradeExecution) error {
	if len(executions) == 0 {
		return ErrEmptyBatch
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("acquire append lock: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO batches (id, source, uploaded_at, accepted, rejected)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, b.Source, b.UploadedAt, b.Accepted, b.Rejected,
		); err != nil {
			return fmt.Errorf("insert batch %s: %w", b.ID, err)
		}

		for i := range executions {
			e := &executions[i]
			e.BatchID = b.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO executions (id, batch_id, symbol, expiry, strike, option_type, side, quantity, price, trade_date)
				 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8, $9::NUMERIC, $10)
				 RETURNING seq`,
				e.ID, e.BatchID, e.Symbol, e.Expiry, e.Strike.String(),
				e.OptionType.String(), e.Side.String(), e.Quantity, e.Price.String(),
				e.TradeDate,
			).Scan(&e.Seq)
			if err != nil {
				return fmt.Errorf("insert execution %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListExecutions(ctx context.Context) ([]model.TradeExecution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, id, batch_id, symbol, expiry, strike::TEXT, option_type, side,
		        quantity, price::TEXT, trade_date
		 FROM executions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExecutions(rows)
}

func (s *PostgresStore) ListBatches(ctx context.Context) ([]model.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, uploaded_at, accepted, rejected
		 FROM batches ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(&b.ID, &b.Source, &b.UploadedAt, &b.Accepted, &b.Rejected); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// pgxRows is the subset of pgx.Rows read by scanExecutions.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanExecutions(rows pgxRows) ([]model.TradeExecution, error) {
	var out []model.TradeExecution
	for rows.Next() {
		var e model.TradeExecution
		var strikeS, priceS, typeS, sideS string

		if err := rows.Scan(&e.Seq, &e.ID, &e.BatchID, &e.Symbol, &e.Expiry,
			&strikeS, &typeS, &sideS, &e.Quantity, &priceS, &e.TradeDate); err != nil {
			return nil, err
		}

		var err error
		if e.Strike, err = decimal.NewFromString(strikeS); err != nil {
			return nil, fmt.Errorf("execution %s strike: %w", e.ID, err)
		}
		if e.Price, err = decimal.NewFromString(priceS); err != nil {
			return nil, fmt.Errorf("execution %s price: %w", e.ID, err)
		}
		if e.OptionType, err = contract.ParseOptionType(typeS); err != nil {
			return nil, fmt.Errorf("execution %s: %w", e.ID, err)
		}
		if e.Side, err = contract.ParseSide(sideS); err != nil {
			return nil, fmt.Errorf("execution %s: %w", e.ID, err)
		}
		e.TradeDate = model.TruncateDate(e.TradeDate)

		out = append(out, e)
	}
	return out, rows.Err()
}
