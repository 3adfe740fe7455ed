// Package report joins daily aggregates with each contract's lifetime status
// and totals realized P&L by trade date and overall.
//
// Realized P&L is weighted-average netting (lifetime sells minus buys of a
// flat leg), not lot-accurate FIFO accounting.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/aggregate"
	"github.com/optpnl/pnl-engine/internal/ledger"
	"github.com/optpnl/pnl-engine/internal/model"
)

// GrandTotalLabel labels the single overall total.
const GrandTotalLabel = "Grand Total"

// Report is the assembled output for one consistent snapshot of history.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Rows        []model.ReportRow   `json:"rows"`
	Subtotals   []model.Subtotal    `json:"subtotals"`
	GrandTotal  *model.GrandTotal   `json:"grand_total"` // nil for an empty report
	Positions   []model.LedgerState `json:"positions"`
	Rejected    []model.Rejection   `json:"rejected,omitempty"`
}

// Build runs the full pipeline over an ingest-ordered history: fold the
// ledger, resolve statuses, aggregate by day, assemble. Executions the
// ledger refuses are listed in Rejected and contribute to nothing else, so
// the aggregator only ever sums quantities the ledger has bounded.
func Build(history []model.TradeExecution) *Report {
	l := ledger.New()
	valid := make([]model.TradeExecution, 0, len(history))
	var rejected []model.Rejection
	for _, e := range history {
		if err := l.Apply(e); err != nil {
			rejected = append(rejected, model.Rejection{ID: e.ID, Reason: err.Error()})
			continue
		}
		valid = append(valid, e)
	}

	aggs := aggregate.Aggregate(valid)
	keys := make([]model.ContractKey, 0, l.Len())
	for _, st := range l.States() {
		keys = append(keys, st.Key)
	}

	rep := Assemble(aggs, ledger.Resolve(l, keys))
	rep.Positions = l.States()
	rep.Rejected = rejected
	return rep
}

// Assemble joins aggregates with statuses, sorts by (date, symbol, strike)
// and computes per-date subtotals and the grand total over closed rows.
func Assemble(aggs []model.DailyAggregate, statuses map[model.ContractKey]model.Status) *Report {
	rep := &Report{
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]model.ReportRow, 0, len(aggs)),
		Subtotals:   []model.Subtotal{},
		Positions:   []model.LedgerState{},
	}
	if len(aggs) == 0 {
		return rep
	}

	for _, agg := range aggs {
		row := model.ReportRow{DailyAggregate: agg, Status: statuses[agg.Key]}
		if row.Status == model.Closed {
			pnl := agg.DailyPnL
			row.RealizedPnL = &pnl
		}
		rep.Rows = append(rep.Rows, row)
	}

	sort.SliceStable(rep.Rows, func(i, j int) bool {
		return rowLess(rep.Rows[i], rep.Rows[j])
	})

	grand := decimal.Zero
	for _, row := range rep.Rows {
		n := len(rep.Subtotals)
		if n == 0 || !rep.Subtotals[n-1].TradeDate.Equal(row.TradeDate) {
			rep.Subtotals = append(rep.Subtotals, model.Subtotal{
				TradeDate:   row.TradeDate,
				Label:       "Subtotal " + row.TradeDate.Format(model.DateLayout),
				RealizedPnL: decimal.Zero,
			})
			n++
		}
		if row.RealizedPnL != nil {
			rep.Subtotals[n-1].RealizedPnL = rep.Subtotals[n-1].RealizedPnL.Add(*row.RealizedPnL)
			grand = grand.Add(*row.RealizedPnL)
		}
	}
	rep.GrandTotal = &model.GrandTotal{Label: GrandTotalLabel, RealizedPnL: grand}
	return rep
}

// rowLess orders by trade date, symbol and numeric strike, then expiry and
// option type so output is deterministic.
func rowLess(a, b model.ReportRow) bool {
	if !a.TradeDate.Equal(b.TradeDate) {
		return a.TradeDate.Before(b.TradeDate)
	}
	if a.Key.Symbol != b.Key.Symbol {
		return a.Key.Symbol < b.Key.Symbol
	}
	if c := a.Key.StrikeValue().Cmp(b.Key.StrikeValue()); c != 0 {
		return c < 0
	}
	if a.Key.Expiry != b.Key.Expiry {
		return a.Key.Expiry < b.Key.Expiry
	}
	return a.Key.OptionType < b.Key.OptionType
}

// Counts returns the number of open and closed legs.
func (r *Report) Counts() (open, closed int) {
	for _, p := range r.Positions {
		switch p.Status {
		case model.Open:
			open++
		case model.Closed:
			closed++
		}
	}
	return open, closed
}
