package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cents is a monetary amount in hundredths of the wishlist currency.  Prices,
// contribution amounts and totals are all stored as integer cents so that
// sums and the remaining-balance clamp are exact.
//
// On the wire a Cents value is a decimal string ("12.50").  Decoding also
// accepts a JSON number (12.5) because browsers post amounts from numeric
// inputs.
type Cents int64

// ErrInvalidMoney is returned when a decimal amount cannot be parsed or has
// more than two fractional digits.
var ErrInvalidMoney = errors.New("invalid monetary amount")

// ParseCents converts a decimal string such as "12", "12.5" or "-3.05" into
// Cents.  More than two fractional digits is an error rather than a silent
// rounding.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, ErrInvalidMoney
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two decimal places", ErrInvalidMoney)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, ErrInvalidMoney
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, ErrInvalidMoney
	}
	if w > (1<<62)/100 {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidMoney)
	}
	v := Cents(w*100 + f)
	if neg {
		v = -v
	}
	return v, nil
}

// String formats the amount with exactly two decimals.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns the amount in whole currency units.  Only used for
// percentages; never for arithmetic on balances.
func (c Cents) Float() float64 { return float64(c) / 100 }

func (c Cents) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Cents) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return ErrInvalidMoney
		}
	}
	v, err := ParseCents(raw)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
