package ledger

import "github.com/optpnl/pnl-engine/internal/model"

// Resolve maps each key to the status of its whole history in l. Every
// daily row of a leg inherits this one status; a leg bought on one day and
// sold out on a later day is Closed on both days.
func Resolve(l *Ledger, keys []model.ContractKey) map[model.ContractKey]model.Status {
	out := make(map[model.ContractKey]model.Status, len(keys))
	for _, k := range keys {
		out[k] = l.StatusOf(k)
	}
	return out
}
