package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

// Columns is the fixed output column order.
var Columns = []string{
	"TradeDate", "Symbol", "Expiry", "Strike", "Type",
	"BuyQty", "BuyAmt", "SellQty", "SellAmt",
	"AvgBuyPrice", "AvgSellPrice", "NetQty", "RealizedPnL", "Status",
}

// Column indexes into Columns used by presentation code.
const (
	ColRealizedPnL = 12
	ColStatus      = 13
)

// LineKind tells detail rows apart from synthetic total rows.
type LineKind int

const (
	DetailLine LineKind = iota
	SubtotalLine
	GrandTotalLine
)

// Line is one flattened output row. Values holds len(Columns) cells; each
// is nil, string, int64 or decimal.Decimal.
type Line struct {
	Kind   LineKind
	Status model.Status
	Values []any
}

// Lines flattens the report: detail rows in sort order, then one subtotal
// per trade date, then the grand total. An empty report has no lines.
func (r *Report) Lines() []Line {
	lines := make([]Line, 0, len(r.Rows)+len(r.Subtotals)+1)
	for _, row := range r.Rows {
		lines = append(lines, Line{
			Kind:   DetailLine,
			Status: row.Status,
			Values: []any{
				row.TradeDate.Format(model.DateLayout),
				row.Key.Symbol,
				row.Key.Expiry,
				row.Key.StrikeValue(),
				row.Key.OptionType.Code(),
				row.BuyQty,
				row.BuyAmt,
				row.SellQty,
				row.SellAmt,
				optional(row.AvgBuyPrice),
				optional(row.AvgSellPrice),
				row.NetQty,
				optional(row.RealizedPnL),
				row.Status.Label(),
			},
		})
	}
	for _, st := range r.Subtotals {
		lines = append(lines, totalLine(SubtotalLine, st.Label, st.RealizedPnL))
	}
	if r.GrandTotal != nil {
		lines = append(lines, totalLine(GrandTotalLine, r.GrandTotal.Label, r.GrandTotal.RealizedPnL))
	}
	return lines
}

// Strings renders every cell as text; undefined cells are empty.
func (l Line) Strings() []string {
	out := make([]string, len(l.Values))
	for i, v := range l.Values {
		switch x := v.(type) {
		case nil:
		case string:
			out[i] = x
		case decimal.Decimal:
			out[i] = x.String()
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

func totalLine(kind LineKind, label string, pnl decimal.Decimal) Line {
	values := make([]any, len(Columns))
	values[0] = label
	values[ColRealizedPnL] = pnl
	return Line{Kind: kind, Values: values}
}

func optional(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}
