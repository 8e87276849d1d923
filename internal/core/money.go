// Package core holds the domain model shared by every component: entities,
// money, zone-less datetimes, input validation and the error taxonomy.
package core

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode"
)

// Money is an amount in cents. Amounts cross the wire as JSON numbers
// (optionally quoted) and are kept as int64 internally so arithmetic on
// balances never loses precision.
type Money int64

// ParseMoney converts a decimal string to cents with half-up rounding on
// the third decimal place.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234, nil
//	ParseMoney("12.345") -> 1234, nil (rounds down)
//	ParseMoney("12.346") -> 1235, nil (rounds up)
func ParseMoney(s string) (Money, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := indexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidInput, s)
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, fmt.Errorf("%w: amount out of range", ErrInvalidInput)
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return Money(cents), nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// Float returns the amount in whole units for serialization and display.
// Two decimal digits always fit a float64 exactly enough to round-trip.
func (m Money) Float() float64 {
	return float64(m) / 100.0
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Float(), 'f', -1, 64)
}

// MarshalJSON renders the amount as a plain JSON number (42, 213.04).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both a JSON number and a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
