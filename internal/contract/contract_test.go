package contract

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/optpnl/pnl-engine/internal/model"
)

func TestParseLeg_Valid(t *testing.T) {
	k, err := ParseLeg("NIFTY_25JUL2024_24000_C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Symbol != "NIFTY" {
		t.Errorf("expected symbol=NIFTY, got %s", k.Symbol)
	}
	if k.Expiry != "25JUL2024" {
		t.Errorf("expected expiry=25JUL2024, got %s", k.Expiry)
	}
	if !k.StrikeValue().Equal(decimal.NewFromInt(24000)) {
		t.Errorf("expected strike=24000, got %s", k.Strike)
	}
	if k.OptionType != model.Call {
		t.Errorf("expected CALL, got %s", k.OptionType)
	}
}

func TestParseLeg_RoundTrip(t *testing.T) {
	want := model.NewContractKey("BANKNIFTY", "2024-07-31", decimal.RequireFromString("51000.50"), model.Put)
	got, err := ParseLeg(want.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestParseLeg_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"NIFTY",
		"NIFTY_25JUL2024",
		"NIFTY_25JUL2024_24000",
		"NIFTY_25JUL2024_24000_X",
		"NIFTY_25JUL2024_abc_C",
		"NIFTY 25JUL2024 24000 C",
	}
	for _, token := range tests {
		if _, err := ParseLeg(token); !errors.Is(err, ErrInvalidLeg) {
			t.Errorf("expected ErrInvalidLeg for %q, got %v", token, err)
		}
	}
}

func TestParseOptionType(t *testing.T) {
	tests := map[string]model.OptionType{
		"CE":   model.Call,
		"ce":   model.Call,
		" C ":  model.Call,
		"CALL": model.Call,
		"PE":   model.Put,
		"P":    model.Put,
		"put":  model.Put,
	}
	for code, want := range tests {
		got, err := ParseOptionType(code)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", code, err)
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", code, want, got)
		}
	}

	for _, bad := range []string{"", "FUT", "XX"} {
		if _, err := ParseOptionType(bad); !errors.Is(err, ErrInvalidOptionType) {
			t.Errorf("expected ErrInvalidOptionType for %q, got %v", bad, err)
		}
	}
}

func TestParseSide(t *testing.T) {
	for _, code := range []string{"B", "b", "BUY"} {
		if s, err := ParseSide(code); err != nil || s != model.Buy {
			t.Errorf("%q: expected BUY, got %v (%v)", code, s, err)
		}
	}
	for _, code := range []string{"S", "sell"} {
		if s, err := ParseSide(code); err != nil || s != model.Sell {
			t.Errorf("%q: expected SELL, got %v (%v)", code, s, err)
		}
	}
	if _, err := ParseSide("HOLD"); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}
