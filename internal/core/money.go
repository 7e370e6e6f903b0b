package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in integer cents. All arithmetic happens on cents to
// avoid floating-point drift in the spent totals.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the amount in currency units for display.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// MarshalJSON encodes the amount as a plain decimal number, the shape API
// clients send and receive.
func (m Money) MarshalJSON() ([]byte, error) {
	whole := m.Cents / 100
	frac := m.Cents % 100
	if frac < 0 {
		frac = -frac
	}
	if frac == 0 {
		return []byte(strconv.FormatInt(whole, 10)), nil
	}
	sign := ""
	if m.Cents < 0 && whole == 0 {
		sign = "-"
	}
	return []byte(sign + strconv.FormatInt(whole, 10) + "." + twoDigits(frac)), nil
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		m.Cents = 0
		return nil
	}
	cents, err := ParseCents(s)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// ParseCents converts a decimal string to cents, rounding half-up on the
// third decimal place. Dot and comma separators are both accepted. Negative
// amounts are rejected: the sign of a movement is carried by the transaction
// type, never by the amount.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart := parts[0], ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || whole > math.MaxInt64/100 {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return whole*100 + frac, nil
}
