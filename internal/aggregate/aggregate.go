// Package aggregate folds executions into one summary row per
// (trade date, contract) pair.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

type groupKey struct {
	date time.Time
	key  model.ContractKey
}

// Aggregate groups executions by trade date and contract. Callers pass only
// executions the ledger accepted; the fold trusts Side and Quantity, and the
// ledger's lifetime bounds keep every per-day sum within int64. Rows come back
// ordered by date then key, and only for pairs present in the input.
func Aggregate(executions []model.TradeExecution) []model.DailyAggregate {
	groups := make(map[groupKey]*model.DailyAggregate)

	for _, e := range executions {
		gk := groupKey{date: model.TruncateDate(e.TradeDate), key: e.Key()}
		agg, ok := groups[gk]
		if !ok {
			agg = &model.DailyAggregate{TradeDate: gk.date, Key: gk.key}
			groups[gk] = agg
		}
		switch e.Side {
		case model.Buy:
			agg.BuyQty += e.Quantity
			agg.BuyAmt = agg.BuyAmt.Add(e.Value())
		case model.Sell:
			agg.SellQty += e.Quantity
			agg.SellAmt = agg.SellAmt.Add(e.Value())
		}
	}

	out := make([]model.DailyAggregate, 0, len(groups))
	for _, agg := range groups {
		agg.AvgBuyPrice = average(agg.BuyAmt, agg.BuyQty)
		agg.AvgSellPrice = average(agg.SellAmt, agg.SellQty)
		agg.NetQty = agg.SellQty - agg.BuyQty
		agg.DailyPnL = agg.SellAmt.Sub(agg.BuyAmt)
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].TradeDate.Equal(out[j].TradeDate) {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		return out[i].Key.Less(out[j].Key)
	})
	return out
}

// average is amt/qty, or nil when no quantity traded on that side.
func average(amt decimal.Decimal, qty int64) *decimal.Decimal {
	if qty == 0 {
		return nil
	}
	avg := amt.Div(decimal.NewFromInt(qty))
	return &avg
}
