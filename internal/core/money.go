// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing goes through decimal so that
// user input like "12.345" rounds once, half away from zero.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a non-negative Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. A
// comma followed by exactly three digits reads as thousands grouping and is
// rejected. Empty, non-numeric, negative and out-of-range input returns
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("300")    -> 30000 cents
//	ParseAmount("12,5")   -> 1250 cents
//	ParseAmount("0")      -> 0 cents
//	ParseAmount("-1")     -> ErrInvalidAmount
//	ParseAmount("1,000")  -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	m, ok := fromDecimal(d)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// ParseTableFee is ParseAmount with blank input meaning zero.
func ParseTableFee(s string) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return Money{}, nil
	}
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return Money{}, ErrInvalidTableFee
	}
	m, ok := fromDecimal(d)
	if !ok {
		return Money{}, ErrInvalidTableFee
	}
	return m, nil
}

// CoerceMoney converts a loosely typed stored value to Money.
// Missing, non-numeric, negative and out-of-range values become zero and
// report ok=false;
// a nil value is a plain default and reports ok=true.
func CoerceMoney(v any) (Money, bool) {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return Money{}, true
	case Money:
		d = decimal.New(x.Cents, -2)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Money{}, false
		}
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt32(x)
	case json.Number:
		var ok bool
		if d, ok = parseDecimal(x.String()); !ok {
			return Money{}, false
		}
	case string:
		if strings.TrimSpace(x) == "" {
			return Money{}, true
		}
		var ok bool
		if d, ok = parseDecimal(x); !ok {
			return Money{}, false
		}
	default:
		return Money{}, false
	}
	if d.IsNegative() {
		return Money{}, false
	}
	return fromDecimal(d)
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		// One comma as the decimal separator, never as grouping.
		if strings.Count(s, ",") > 1 || strings.Contains(s, ".") || len(s)-i-1 == 3 {
			return decimal.Zero, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// fromDecimal rounds to cents and reports false when the result does not
// fit in int64.
func fromDecimal(d decimal.Decimal) (Money, bool) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Money{}, false
	}
	return Money{Cents: c.IntPart()}, true
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Decimal returns the amount in whole units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the value for charting. Use cents for arithmetic.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// String formats without trailing zeros, e.g. "170", "-12.5".
func (m Money) String() string {
	return m.Decimal().String()
}

// Signed formats with an explicit "+" for positive values, as shown on calendar days.
func (m Money) Signed() string {
	if m.Cents > 0 {
		return "+" + m.String()
	}
	return m.String()
}

// MarshalJSON encodes Money as a JSON number in whole units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a number or numeric string in whole units.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	d, ok := parseDecimal(s)
	if !ok {
		return ErrInvalidAmount
	}
	v, ok := fromDecimal(d)
	if !ok {
		return ErrInvalidAmount
	}
	*m = v
	return nil
}
