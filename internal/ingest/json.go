package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/contract"
	"github.com/optpnl/pnl-engine/internal/model"
)

// Record is one execution as submitted over the JSON API. Codes and dates
// take the same vocabulary as broker files: CE/PE/CALL/PUT, B/S/BUY/SELL,
// and any layout ParseTradeDate accepts.
type Record struct {
	Symbol     string           `json:"symbol"`
	Expiry     string           `json:"expiry"`
	Strike     *decimal.Decimal `json:"strike"`
	OptionType string           `json:"option_type"`
	Side       string           `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Price      decimal.Decimal  `json:"price"`
	TradeDate  string           `json:"trade_date"`
}

// Execution maps r onto a TradeExecution. The result still needs Validate.
func (r Record) Execution() (model.TradeExecution, error) {
	var e model.TradeExecution

	e.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	e.Expiry = NormalizeExpiry(r.Expiry)
	if r.Strike == nil {
		return e, fmt.Errorf("%w: strike", model.ErrMissingField)
	}
	e.Strike = *r.Strike

	var err error
	if e.OptionType, err = contract.ParseOptionType(r.OptionType); err != nil {
		return e, err
	}
	if e.Side, err = contract.ParseSide(r.Side); err != nil {
		return e, err
	}
	if e.Quantity, err = Quantity(r.Quantity); err != nil {
		return e, err
	}
	e.Price = r.Price
	if e.TradeDate, err = ParseTradeDate(r.TradeDate); err != nil {
		return e, err
	}
	return e, nil
}

// ParseRecords decodes and validates each raw record on its own, so one
// malformed entry is rejected without refusing the rest. Rows are 1-based
// positions in the submitted array.
func ParseRecords(source string, raw []json.RawMessage) *Result {
	res := &Result{
		Source:     source,
		Executions: make([]model.TradeExecution, 0, len(raw)),
		Rejected:   []model.Rejection{},
	}
	for i, msg := range raw {
		var rec Record
		err := json.Unmarshal(msg, &rec)
		if err != nil {
			err = fmt.Errorf("invalid record: %w", err)
		}

		var e model.TradeExecution
		if err == nil {
			e, err = rec.Execution()
		}
		if err == nil {
			err = e.Validate()
		}
		if err != nil {
			res.Rejected = append(res.Rejected, model.Rejection{Row: i + 1, Reason: err.Error()})
			continue
		}
		res.Executions = append(res.Executions, e)
	}
	return res
}
