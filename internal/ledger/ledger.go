// Package ledger keeps the cumulative signed position of every option leg and
// derives each leg's lifetime Open/Closed status from it.
//
// Netting is weighted-average: a leg is Closed when its lifetime sell
// quantity equals its lifetime buy quantity, and its realized P&L is the
// lifetime sell amount minus buy amount. There is no per-lot (FIFO) matching.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

var (
	// ErrRejected wraps the validation failure of an execution refused by Apply.
	ErrRejected = errors.New("ledger: execution rejected")

	// ErrQuantityOverflow means a leg's lifetime bought or sold quantity
	// would no longer fit in an int64.
	ErrQuantityOverflow = errors.New("ledger: cumulative quantity overflows int64")
)

// position keeps lifetime bought and sold lots separately. Both are
// non-negative and bounded by MaxInt64, so sold-bought and every daily
// partial sum stay representable.
type position struct {
	bought     int64
	sold       int64
	signedAmt  decimal.Decimal
	executions int
}

func (p *position) signedQty() int64 { return p.sold - p.bought }

// Ledger is a fold over an execution log. It is not safe for concurrent
// mutation; callers rebuild it from a consistent snapshot of the log.
type Ledger struct {
	positions map[model.ContractKey]*position
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[model.ContractKey]*position)}
}

// Fold builds a ledger from an ingest-ordered execution log. Invalid
// executions are skipped and reported.
func Fold(executions []model.TradeExecution) (*Ledger, []model.Rejection) {
	l := New()
	var rejected []model.Rejection
	for _, e := range executions {
		if err := l.Apply(e); err != nil {
			rejected = append(rejected, model.Rejection{ID: e.ID, Reason: err.Error()})
		}
	}
	return l, rejected
}

// Apply folds one execution into its leg's state. Sells add +Quantity and
// +Value, buys add -Quantity and -Value. An invalid execution leaves the
// ledger untouched.
func (l *Ledger) Apply(e model.TradeExecution) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	key := e.Key()
	p, ok := l.positions[key]
	if !ok {
		p = &position{}
	}

	total := &p.sold
	amt := e.Value()
	if e.Side == model.Buy {
		total = &p.bought
		amt = amt.Neg()
	}
	if *total > math.MaxInt64-e.Quantity {
		return fmt.Errorf("%w: %w: %s", ErrRejected, ErrQuantityOverflow, key)
	}

	*total += e.Quantity
	p.signedAmt = p.signedAmt.Add(amt)
	p.executions++
	if !ok {
		l.positions[key] = p
	}
	return nil
}

// StatusOf returns Closed iff the leg's cumulative signed quantity is zero,
// Open if it is not, and NoPosition for a leg never traded.
func (l *Ledger) StatusOf(key model.ContractKey) model.Status {
	p, ok := l.positions[key]
	if !ok {
		return model.NoPosition
	}
	return statusFor(p.signedQty())
}

// State returns the cumulative state of one leg.
func (l *Ledger) State(key model.ContractKey) (model.LedgerState, bool) {
	p, ok := l.positions[key]
	if !ok {
		return model.LedgerState{}, false
	}
	return toState(key, p), true
}

// States returns every leg's state ordered by key.
func (l *Ledger) States() []model.LedgerState {
	states := make([]model.LedgerState, 0, len(l.positions))
	for k, p := range l.positions {
		states = append(states, toState(k, p))
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Key.Less(states[j].Key)
	})
	return states
}

// Len is the number of legs ever traded.
func (l *Ledger) Len() int { return len(l.positions) }

func toState(key model.ContractKey, p *position) model.LedgerState {
	return model.LedgerState{
		Key:            key,
		SignedQuantity: p.signedQty(),
		SignedAmount:   p.signedAmt,
		Executions:     p.executions,
		Status:         statusFor(p.signedQty()),
	}
}

func statusFor(signedQty int64) model.Status {
	if signedQty == 0 {
		return model.Closed
	}
	return model.Open
}
