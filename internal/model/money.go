package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in paise (1/100 rupee).  All fee arithmetic is done on
// integers; the JSON form is a decimal rupee value such as 50.00 so clients
// can render it directly.
type Money int64

// Rupees builds a Money from a rupee float, rounding half away from zero to
// the nearest paisa.  Values beyond the int64 range saturate.
func Rupees(r float64) Money {
	p := math.Round(r * 100)
	switch {
	case p >= math.MaxInt64:
		return math.MaxInt64
	case p <= math.MinInt64:
		return math.MinInt64
	}
	return Money(p)
}

// Float returns the amount in rupees.
func (m Money) Float() float64 { return float64(m) / 100 }

// String formats the amount with two decimals.
func (m Money) String() string { return strconv.FormatFloat(m.Float(), 'f', 2, 64) }

// MarshalJSON writes the amount as a JSON number in rupees.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in rupees.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("money: %q is not a finite amount", s)
	}
	*m = Rupees(f)
	return nil
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
