// Package model defines the core domain types shared across the P&L engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors returned by TradeExecution.Validate.
var (
	ErrNonPositiveQuantity = errors.New("model: quantity must be positive")
	ErrNonPositivePrice    = errors.New("model: price must be positive")
	ErrUnknownOptionType   = errors.New("model: unknown option type")
	ErrUnknownSide         = errors.New("model: unknown side")
	ErrMissingField        = errors.New("model: missing required field")
)

// DateLayout is the wire format for trade dates.
const DateLayout = "2006-01-02"

// TradeExecution is an immutable, normalized option fill.
// Once accepted into the execution log it is never modified or deleted.
type TradeExecution struct {
	ID         string          `json:"id" db:"id"`
	BatchID    string          `json:"batch_id" db:"batch_id"`
	Seq        int64           `json:"seq" db:"seq"` // ingest order within the log
	Symbol     string          `json:"symbol" db:"symbol"`
	Expiry     string          `json:"expiry" db:"expiry"`
	Strike     decimal.Decimal `json:"strike" db:"strike"`
	OptionType OptionType      `json:"option_type" db:"option_type"`
	Side       Side            `json:"side" db:"side"`
	Quantity   int64           `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	TradeDate  time.Time       `json:"trade_date" db:"trade_date"`
}

// Value is Quantity × Price, exact.
func (e TradeExecution) Value() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(e.Quantity))
}

// Key returns the contract leg this execution trades.
func (e TradeExecution) Key() ContractKey {
	return NewContractKey(e.Symbol, e.Expiry, e.Strike, e.OptionType)
}

// Validate reports why an execution must not reach the ledger, or nil.
func (e TradeExecution) Validate() error {
	switch {
	case e.Symbol == "":
		return fmt.Errorf("%w: symbol", ErrMissingField)
	case e.Expiry == "":
		return fmt.Errorf("%w: expiry", ErrMissingField)
	case e.TradeDate.IsZero():
		return fmt.Errorf("%w: trade date", ErrMissingField)
	case e.Quantity <= 0:
		return fmt.Errorf("%w: got %d", ErrNonPositiveQuantity, e.Quantity)
	case !e.Price.IsPositive():
		return fmt.Errorf("%w: got %s", ErrNonPositivePrice, e.Price)
	case !e.OptionType.Valid():
		return ErrUnknownOptionType
	case !e.Side.Valid():
		return ErrUnknownSide
	}
	return nil
}

// TruncateDate drops the time-of-day so executions group by calendar day.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ContractKey identifies one tradable leg across all dates. The strike is
// kept in canonical decimal form so the key is comparable and usable as a
// map key.
type ContractKey struct {
	Symbol     string     `json:"symbol"`
	Expiry     string     `json:"expiry"`
	Strike     string     `json:"strike"`
	OptionType OptionType `json:"option_type"`
}

// NewContractKey builds a key with the strike normalized, so 100 and 100.00
// address the same leg.
func NewContractKey(symbol, expiry string, strike decimal.Decimal, ot OptionType) ContractKey {
	return ContractKey{
		Symbol:     symbol,
		Expiry:     expiry,
		Strike:     strike.String(),
		OptionType: ot,
	}
}

// StrikeValue parses the canonical strike back into a decimal.
func (k ContractKey) StrikeValue() decimal.Decimal {
	v, _ := decimal.NewFromString(k.Strike)
	return v
}

// String renders the leg token, e.g. NIFTY_25JUL2024_24000_C.
func (k ContractKey) String() string {
	return k.Symbol + "_" + k.Expiry + "_" + k.Strike + "_" + k.OptionType.Code()
}

// Less orders keys by symbol, strike, expiry, then option type.
func (k ContractKey) Less(o ContractKey) bool {
	if k.Symbol != o.Symbol {
		return k.Symbol < o.Symbol
	}
	if c := k.StrikeValue().Cmp(o.StrikeValue()); c != 0 {
		return c < 0
	}
	if k.Expiry != o.Expiry {
		return k.Expiry < o.Expiry
	}
	return k.OptionType < o.OptionType
}

// LedgerState is the cumulative signed position of one contract.
// Sells contribute +Quantity/+Value, buys contribute -Quantity/-Value.
type LedgerState struct {
	Key            ContractKey     `json:"key"`
	SignedQuantity int64           `json:"signed_quantity"`
	SignedAmount   decimal.Decimal `json:"signed_amount"`
	Executions     int             `json:"executions"`
	Status         Status          `json:"status"`
}

// DailyAggregate folds one contract's executions on one trade date.
type DailyAggregate struct {
	TradeDate    time.Time        `json:"trade_date"`
	Key          ContractKey      `json:"key"`
	BuyQty       int64            `json:"buy_qty"`
	BuyAmt       decimal.Decimal  `json:"buy_amt"`
	SellQty      int64            `json:"sell_qty"`
	SellAmt      decimal.Decimal  `json:"sell_amt"`
	AvgBuyPrice  *decimal.Decimal `json:"avg_buy_price"`  // nil when BuyQty == 0
	AvgSellPrice *decimal.Decimal `json:"avg_sell_price"` // nil when SellQty == 0
	NetQty       int64            `json:"net_qty"`        // SellQty - BuyQty
	DailyPnL     decimal.Decimal  `json:"daily_pnl"`      // informational only
}

// ReportRow is a DailyAggregate joined with its contract's global status.
type ReportRow struct {
	DailyAggregate
	Status      Status           `json:"status"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl"` // nil unless Closed
}

// Subtotal sums realized P&L over one trade date's closed rows.
type Subtotal struct {
	TradeDate   time.Time       `json:"trade_date"`
	Label       string          `json:"label"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// GrandTotal sums realized P&L over every closed row in a report.
type GrandTotal struct {
	Label       string          `json:"label"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Batch is the record of one upload into the execution log.
type Batch struct {
	ID         string    `json:"id" db:"id"`
	Source     string    `json:"source" db:"source"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
	Accepted   int       `json:"accepted" db:"accepted"`
	Rejected   int       `json:"rejected" db:"rejected"`
}

// Rejection records an execution that failed validation and was dropped.
type Rejection struct {
	Row    int    `json:"row,omitempty"` // 1-based source row, 0 if not from a file
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}
