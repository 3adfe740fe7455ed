// Package contract maps broker vocabulary onto the engine's option legs:
// option-type and side codes, and the SYMBOL_EXPIRY_STRIKE_C|P leg token.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

// legRegex matches: {symbol}_{expiry}_{strike}_{C|P}
// Example: NIFTY_25JUL2024_24000_C
var legRegex = regexp.MustCompile(
	`^([A-Za-z0-9&.\-]+)_([A-Za-z0-9.\-]+)_([0-9]+(?:\.[0-9]+)?)_([CP])$`,
)

var (
	ErrInvalidLeg        = errors.New("contract: invalid leg format")
	ErrInvalidOptionType = errors.New("contract: unmapped option type")
	ErrInvalidSide       = errors.New("contract: unmapped side")
)

var optionTypes = map[string]model.OptionType{
	"CE":   model.Call,
	"C":    model.Call,
	"CALL": model.Call,
	"PE":   model.Put,
	"P":    model.Put,
	"PUT":  model.Put,
}

var sides = map[string]model.Side{
	"B":    model.Buy,
	"BUY":  model.Buy,
	"S":    model.Sell,
	"SELL": model.Sell,
}

// ParseOptionType maps a broker option-type code (CE/PE, C/P, CALL/PUT).
func ParseOptionType(code string) (model.OptionType, error) {
	if ot, ok := optionTypes[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return ot, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOptionType, code)
}

// ParseSide maps a broker side code (B/S, BUY/SELL).
func ParseSide(code string) (model.Side, error) {
	if s, ok := sides[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, code)
}

// ParseLeg parses and validates a leg token back into a ContractKey.
// Format: {symbol}_{expiry}_{strike}_{C|P}
func ParseLeg(token string) (model.ContractKey, error) {
	matches := legRegex.FindStringSubmatch(token)
	if matches == nil {
		return model.ContractKey{}, fmt.Errorf("%w: %s (expected {symbol}_{expiry}_{strike}_{C|P})",
			ErrInvalidLeg, token)
	}

	strike, err := decimal.NewFromString(matches[3])
	if err != nil {
		return model.ContractKey{}, fmt.Errorf("%w: invalid strike %s", ErrInvalidLeg, matches[3])
	}
	ot, err := ParseOptionType(matches[4])
	if err != nil {
		return model.ContractKey{}, err
	}

	return model.NewContractKey(matches[1], matches[2], strike, ot), nil
}
