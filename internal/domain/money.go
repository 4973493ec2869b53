// internal/domain/money.go
package domain

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal" // For exact parsing and rendering

	"balance-ledger/internal/util"
)

// Money is an amount in minor units (cents). Two fractional digits are the only precision the ledger knows.
type Money int64

// maxIntegerDigits keeps the minor-unit value well inside int64.
const maxIntegerDigits = 15

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseAmount parses a caller-supplied transaction amount.
// Only positive plain decimals with at most two fractional digits are accepted: "50", "50.5", "50.50".
func ParseAmount(text string) (Money, error) {
	if !amountPattern.MatchString(text) {
		return 0, invalidAmount(text)
	}

	integerPart := strings.SplitN(strings.TrimLeft(text, "0"), ".", 2)[0]
	if len(integerPart) > maxIntegerDigits {
		return 0, invalidAmount(text)
	}

	d, err := decimal.NewFromString(text)
	if err != nil || !d.IsPositive() {
		return 0, invalidAmount(text)
	}
	return Money(d.Shift(2).IntPart()), nil
}

func invalidAmount(text string) error {
	return fmt.Errorf("%w: %s", util.ErrInvalidAmount, text)
}

// MoneyFromDecimal converts a decimal value to Money, rounding half away from zero to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(2).Shift(2).IntPart())
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount with trailing zeros trimmed ("50", "50.5").
func (m Money) String() string {
	return m.Decimal().String()
}

// Neg returns the additive inverse.
func (m Money) Neg() Money { return -m }

func (m Money) IsNegative() bool { return m < 0 }

// MarshalJSON renders Money as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to decode money: %w", err)
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// Value stores Money in NUMERIC(20, 2) columns.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal().StringFixed(2), nil
}

// Scan reads NUMERIC, text and integer column values.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan money: %w", err)
	}
	*m = MoneyFromDecimal(d)
	return nil
}
