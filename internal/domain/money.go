package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in currency minor units (cents). Two amounts are equal
// iff they are equal to the cent.
type Money int64

const minorPerMajor = 100

// ErrAmountOutOfRange is returned when an amount or product does not fit in Money.
var ErrAmountOutOfRange = errors.New("amount out of range")

// BasisPointsOne is a multiplier of exactly 1.0 expressed in basis points.
const BasisPointsOne = 10000

// NewMoney builds an amount from major and minor parts, e.g. NewMoney(75, 0).
func NewMoney(major, minor int64) Money {
	return Money(major*minorPerMajor + minor)
}

// ParseMoney parses a decimal string with at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac {
		frac = strings.TrimRight(frac, "0")
		if len(frac) > 2 {
			return 0, fmt.Errorf("amount %q has sub-cent precision", s)
		}
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, ErrAmountOutOfRange)
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if major > math.MaxInt64/minorPerMajor || major*minorPerMajor > math.MaxInt64-minor {
		return 0, fmt.Errorf("amount %q: %w", s, ErrAmountOutOfRange)
	}
	m := Money(major*minorPerMajor + minor)
	if neg {
		m = -m
	}
	return m, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MustMoney parses s and panics on error. Intended for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }

// MulBasisPoints multiplies by bp/10000 rounding half away from zero.
// bp must not be negative.
func (m Money) MulBasisPoints(bp int64) (Money, error) {
	if bp < 0 {
		return 0, fmt.Errorf("negative multiplier %d", bp)
	}
	if m == math.MinInt64 || (bp != 0 && abs64(int64(m)) > math.MaxInt64/bp) {
		return 0, fmt.Errorf("%s x %d bp: %w", m, bp, ErrAmountOutOfRange)
	}
	product := int64(m) * bp
	q, r := product/BasisPointsOne, product%BasisPointsOne
	if r < 0 {
		r = -r
	}
	if 2*r >= BasisPointsOne {
		if product < 0 {
			q--
		} else {
			q++
		}
	}
	return Money(q), nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m Money) IsPositive() bool { return m > 0 }

// Minor returns the amount in cents.
func (m Money) Minor() int64 { return int64(m) }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerMajor, v%minorPerMajor)
}

// MarshalJSON encodes the amount as a decimal string to keep it off binary floating point.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "75.00" or 75.00.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; NUMERIC columns accept the text form.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns read as text.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
	case []byte:
		return m.Scan(string(v))
	case int64:
		*m = Money(v * minorPerMajor)
	case nil:
		*m = 0
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	return nil
}
