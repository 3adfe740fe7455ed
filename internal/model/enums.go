package model

import (
	"encoding/json"
	"fmt"
)

// OptionType distinguishes calls from puts.
type OptionType int

const (
	Call OptionType = iota + 1
	Put
)

func (t OptionType) Valid() bool { return t == Call || t == Put }

// Code is the one-letter leg suffix.
func (t OptionType) Code() string {
	switch t {
	case Call:
		return "C"
	case Put:
		return "P"
	}
	return "?"
}

func (t OptionType) String() string {
	switch t {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	}
	return "UNKNOWN"
}

func (t OptionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OptionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "CALL":
		*t = Call
	case "PUT":
		*t = Put
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOptionType, s)
	}
	return nil
}

// Side is the direction of an execution.
type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSide, v)
	}
	return nil
}

// Status is the lifetime state of a contract in the ledger.
type Status int

const (
	NoPosition Status = iota
	Open
	Closed
)

func (s Status) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	}
	return "NO_POSITION"
}

// Label is the human-facing status text used in exported reports.
func (s Status) Label() string {
	switch s {
	case Open:
		return "Open Position"
	case Closed:
		return "Closed"
	}
	return ""
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "OPEN":
		*s = Open
	case "CLOSED":
		*s = Closed
	case "NO_POSITION", "":
		*s = NoPosition
	default:
		return fmt.Errorf("model: unknown status %q", v)
	}
	return nil
}
