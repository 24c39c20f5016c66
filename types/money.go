// Package types provides common types used across entitle.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Money is a plan price in the smallest currency unit. Arithmetic stays in
// integers so catalog prices compare and sort exactly.
//
//   - RUB(19900) = 199.00 ₽
//   - USD(499)   = $4.99
type Money struct {
	Amount   int64  `json:"amount"`   // minor units (kopecks, cents)
	Currency string `json:"currency"` // ISO 4217, lowercase
}

// RUB creates a Money value in Russian roubles (kopecks).
func RUB(kopecks int64) Money { return Money{Amount: kopecks, Currency: "rub"} }

// USD creates a Money value in US dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// ParseMajor parses a decimal price such as "199.00" or "4.5" in major units
// into a Money value. More decimals than the currency allows is an error.
func ParseMajor(s, currency string) (Money, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(currency), nil
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	decimals := currencyDecimals(currency)
	if len(frac) > decimals {
		return Money{}, fmt.Errorf("money: %q has more than %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	var minor int64
	if frac != "" {
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
		}
	}

	amount := major*pow10(decimals) + minor
	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Equal returns true if both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// Compare orders two prices by amount. Zero amounts compare equal regardless
// of currency so a free tier sorts first in any catalog; otherwise currencies
// must match.
func (m Money) Compare(other Money) int {
	if m.Amount != 0 && other.Amount != 0 && m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
	switch {
	case m.Amount < other.Amount:
		return -1
	case m.Amount > other.Amount:
		return 1
	default:
		return 0
	}
}

// FormatMajor returns the amount in major units without a symbol: "199.00".
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return strconv.FormatInt(m.Amount, 10)
	}

	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}
	div := pow10(decimals)
	return fmt.Sprintf("%s%d.%0*d", sign, abs/div, decimals, abs%div)
}

// String returns a display form with the currency symbol.
func (m Money) String() string {
	switch sym := currencySymbol(m.Currency); m.Currency {
	case "rub":
		return m.FormatMajor() + " " + sym
	default:
		return sym + m.FormatMajor()
	}
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Currency = strings.ToLower(raw.Currency)
	return nil
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"rub": "₽",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"kzt": "₸",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd":
		return 0
	default:
		return 2
	}
}
