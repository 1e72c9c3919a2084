package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Pesos builds a Money value from whole major units.
func Pesos(units int64) Money {
	return Money(units * 100)
}

func (m Money) Cents() int64 {
	return int64(m)
}

// String renders the amount with two decimals, e.g. "1218.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseMoney parses a decimal string. Digits past the second decimal round half up.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty value")
	}

	negative := false
	if s[0] == '-' || s[0] == '+' {
		negative = s[0] == '-'
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}

	var cents int64
	for i := 0; i < len(frac); i++ {
		c := frac[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("parse money %q: invalid digit", s)
		}
		switch {
		case i < 2:
			cents = cents*10 + int64(c-'0')
		case i == 2 && c >= '5':
			cents++
		}
	}
	if len(frac) == 1 {
		cents *= 10
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		parsed, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
	case int64:
		*m = Pesos(v)
	case float64:
		parsed, err := ParseMoney(strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
